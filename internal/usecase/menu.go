package usecase

import "github.com/healthshop/clerk/internal/domain"

var (
	userIDParam = domain.Parameter{
		Name:        "user_id",
		Type:        domain.ParamInteger,
		Description: "User identification, e.g. 1",
		Required:    true,
	}
	searchQueryParam = domain.Parameter{
		Name:        "search_query",
		Type:        domain.ParamString,
		Description: "Query string to use for full text search, e.g. 'protein powder'",
		Required:    true,
	}
)

// Menu is the static list of operations offered to the oracle on every first pass
func Menu() []domain.OperationSpec {
	return []domain.OperationSpec{
		{
			Kind:        domain.OpSearchProducts,
			Description: "Search the shop catalog for relevant products based on user query",
			Parameters: []domain.Parameter{
				searchQueryParam,
				{
					Name:        "price_filter",
					Type:        domain.ParamObject,
					Description: "Filter search results based on price of the product",
					Properties: []domain.Parameter{
						{
							Name:        "comparison_operator",
							Type:        domain.ParamString,
							Description: "Operator to compare the column value, either '>', '<', '>=', '<=', '='",
						},
						{
							Name:        "value",
							Type:        domain.ParamNumber,
							Description: "Value to compare against, e.g. 30",
						},
					},
				},
			},
		},
		{
			Kind:        domain.OpShowCart,
			Description: "List the products in the user's shopping cart",
			Parameters:  []domain.Parameter{userIDParam},
		},
		{
			Kind:        domain.OpAddProductToCart,
			Description: "Add products into the user's shopping cart",
			Parameters: []domain.Parameter{
				userIDParam,
				searchQueryParam,
				{Name: "quantity", Type: domain.ParamInteger, Description: "The number of products added, e.g. 3"},
			},
		},
		{
			Kind:        domain.OpRemoveProductFromCart,
			Description: "Remove products out of the user's shopping cart",
			Parameters:  []domain.Parameter{userIDParam, searchQueryParam},
		},
		{
			Kind:        domain.OpUpdateProductQuantity,
			Description: "Update a product's quantity in the user's shopping cart",
			Parameters: []domain.Parameter{
				userIDParam,
				searchQueryParam,
				{Name: "quantity", Type: domain.ParamInteger, Description: "The number of products expected to update, e.g. 3", Required: true},
			},
		},
		{
			Kind:        domain.OpPayCart,
			Description: "Make a payment for the products in the user's shopping cart",
			Parameters:  []domain.Parameter{userIDParam},
		},
		{
			Kind:        domain.OpCheckProductsStatus,
			Description: "Check the status of products the user has ordered or put in the cart",
			Parameters:  []domain.Parameter{userIDParam},
		},
	}
}
