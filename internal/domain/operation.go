package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// OperationKind names an entry of the operation menu offered to the oracle
type OperationKind string

const (
	OpSearchProducts        OperationKind = "search_products"
	OpShowCart              OperationKind = "show_cart"
	OpAddProductToCart      OperationKind = "add_product_to_cart"
	OpRemoveProductFromCart OperationKind = "remove_product_from_cart"
	OpUpdateProductQuantity OperationKind = "update_product_quantity"
	OpPayCart               OperationKind = "pay_cart"
	OpCheckProductsStatus   OperationKind = "check_products_status"
)

// OperationKinds lists every kind in menu order
var OperationKinds = []OperationKind{
	OpSearchProducts,
	OpShowCart,
	OpAddProductToCart,
	OpRemoveProductFromCart,
	OpUpdateProductQuantity,
	OpPayCart,
	OpCheckProductsStatus,
}

// Operation is the closed set of typed operation payloads.
// Only the types declared in this file implement it.
type Operation interface {
	Kind() OperationKind
	isOperation()
}

type SearchProducts struct {
	Query       string
	PriceFilter *PriceFilter
}

type ShowCart struct {
	UserID int64
}

type AddProductToCart struct {
	UserID   int64
	Query    string
	Quantity int
}

type RemoveProductFromCart struct {
	UserID int64
	Query  string
}

type UpdateProductQuantity struct {
	UserID   int64
	Query    string
	Quantity int
}

type PayCart struct {
	UserID int64
}

type CheckProductsStatus struct {
	UserID int64
}

func (SearchProducts) Kind() OperationKind        { return OpSearchProducts }
func (ShowCart) Kind() OperationKind              { return OpShowCart }
func (AddProductToCart) Kind() OperationKind      { return OpAddProductToCart }
func (RemoveProductFromCart) Kind() OperationKind { return OpRemoveProductFromCart }
func (UpdateProductQuantity) Kind() OperationKind { return OpUpdateProductQuantity }
func (PayCart) Kind() OperationKind               { return OpPayCart }
func (CheckProductsStatus) Kind() OperationKind   { return OpCheckProductsStatus }

func (SearchProducts) isOperation()        {}
func (ShowCart) isOperation()              {}
func (AddProductToCart) isOperation()      {}
func (RemoveProductFromCart) isOperation() {}
func (UpdateProductQuantity) isOperation() {}
func (PayCart) isOperation()               {}
func (CheckProductsStatus) isOperation()   {}

// DecodeOperation turns an oracle call request into a typed operation.
// Cart operations are always bound to userID, the user of the session; a user_id
// argument supplied by the oracle is not trusted.
func DecodeOperation(name string, args map[string]any, userID int64) (Operation, error) {
	switch OperationKind(name) {
	case OpSearchProducts:
		query, err := requiredString(args, "search_query")
		if err != nil {
			return nil, err
		}
		filter, err := decodePriceFilter(args["price_filter"])
		if err != nil {
			return nil, err
		}
		return SearchProducts{Query: query, PriceFilter: filter}, nil

	case OpShowCart:
		return ShowCart{UserID: userID}, nil

	case OpAddProductToCart:
		query, err := requiredString(args, "search_query")
		if err != nil {
			return nil, err
		}
		quantity := 1
		if _, ok := args["quantity"]; ok {
			if quantity, err = integerArg(args, "quantity"); err != nil {
				return nil, err
			}
		}
		return AddProductToCart{UserID: userID, Query: query, Quantity: quantity}, nil

	case OpRemoveProductFromCart:
		query, err := requiredString(args, "search_query")
		if err != nil {
			return nil, err
		}
		return RemoveProductFromCart{UserID: userID, Query: query}, nil

	case OpUpdateProductQuantity:
		query, err := requiredString(args, "search_query")
		if err != nil {
			return nil, err
		}
		if _, ok := args["quantity"]; !ok {
			return nil, fmt.Errorf("%w: quantity is required", ErrInvalidArguments)
		}
		quantity, err := integerArg(args, "quantity")
		if err != nil {
			return nil, err
		}
		return UpdateProductQuantity{UserID: userID, Query: query, Quantity: quantity}, nil

	case OpPayCart:
		return PayCart{UserID: userID}, nil

	case OpCheckProductsStatus:
		return CheckProductsStatus{UserID: userID}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
}

func requiredString(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidArguments, key)
	}
	return strings.TrimSpace(v), nil
}

func integerArg(args map[string]any, key string) (int, error) {
	f, err := numberArg(args[key])
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalidArguments, key)
	}
	return int(f), nil
}

func numberArg(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

func decodePriceFilter(v any) (*PriceFilter, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: price_filter must be an object", ErrInvalidArguments)
	}
	if len(m) == 0 {
		return nil, nil
	}
	opStr, _ := m["comparison_operator"].(string)
	op, err := ParseComparisonOperator(opStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	f, err := numberArg(m["value"])
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: price_filter value must be a number", ErrInvalidArguments)
	}
	return &PriceFilter{Operator: op, Value: decimal.NewFromFloat(f)}, nil
}
