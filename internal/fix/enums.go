package fix

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

type Side uint8

const (
	SideBuy Side = iota + 1
	SideSell

	sideBuyStr  = "BUY"
	sideSellStr = "SELL"

	sideBuyCode  = "1"
	sideSellCode = "2"
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return sideBuyStr
	case SideSell:
		return sideSellStr
	}
	return "UNKNOWN(" + strconv.Itoa(int(s)) + ")"
}

// Code returns the FIX Side(54) value
func (s Side) Code() string {
	switch s {
	case SideBuy:
		return sideBuyCode
	case SideSell:
		return sideSellCode
	}
	return ""
}

func (s Side) MarshalJSON() ([]byte, error) {
	switch s {
	case SideBuy, SideSell:
		return json.Marshal(s.String())
	}
	return nil, errors.New("invalid order side json conversion: " + strconv.Itoa(int(s)))
}

func (s *Side) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	side, err := ParseSide(str)
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// ParseSide parses "BUY"/"SELL" case-insensitively
func ParseSide(value string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case sideBuyStr:
		return SideBuy, nil
	case sideSellStr:
		return SideSell, nil
	}
	return 0, errors.New("unsupported order side: " + value)
}

// SideFromCode maps a FIX Side(54) value
func SideFromCode(code string) (Side, bool) {
	switch code {
	case sideBuyCode:
		return SideBuy, true
	case sideSellCode:
		return SideSell, true
	}
	return 0, false
}

type OrdType uint8

const (
	OrdTypeMarket OrdType = iota + 1
	OrdTypeLimit

	ordTypeMarketStr = "MARKET"
	ordTypeLimitStr  = "LIMIT"

	ordTypeMarketCode = "1"
	ordTypeLimitCode  = "2"
)

func (t OrdType) String() string {
	switch t {
	case OrdTypeMarket:
		return ordTypeMarketStr
	case OrdTypeLimit:
		return ordTypeLimitStr
	}
	return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
}

// Code returns the FIX OrdType(40) value
func (t OrdType) Code() string {
	switch t {
	case OrdTypeMarket:
		return ordTypeMarketCode
	case OrdTypeLimit:
		return ordTypeLimitCode
	}
	return ""
}

func (t OrdType) MarshalJSON() ([]byte, error) {
	switch t {
	case OrdTypeMarket, OrdTypeLimit:
		return json.Marshal(t.String())
	}
	return nil, errors.New("invalid order type json conversion: " + strconv.Itoa(int(t)))
}

func (t *OrdType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	ordType, err := ParseOrdType(str)
	if err != nil {
		return err
	}
	*t = ordType
	return nil
}

// ParseOrdType parses "MARKET"/"LIMIT" case-insensitively
func ParseOrdType(value string) (OrdType, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case ordTypeMarketStr:
		return OrdTypeMarket, nil
	case ordTypeLimitStr:
		return OrdTypeLimit, nil
	}
	return 0, errors.New("unsupported order type: " + value)
}

// OrderStatus is the lifecycle state carried by an order update
type OrderStatus uint8

const (
	OrderStatusNew OrderStatus = iota + 1
	OrderStatusFilled
	OrderStatusCancelled
	OrderStatusRejected
	OrderStatusCancelRejected
)

var orderStatusNames = map[OrderStatus]string{
	OrderStatusNew:            "NEW",
	OrderStatusFilled:         "FILLED",
	OrderStatusCancelled:      "CANCELLED",
	OrderStatusRejected:       "REJECTED",
	OrderStatusCancelRejected: "CANCEL_REJECTED",
}

func (s OrderStatus) String() string {
	if name, ok := orderStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN(" + strconv.Itoa(int(s)) + ")"
}

func (s OrderStatus) MarshalJSON() ([]byte, error) {
	name, ok := orderStatusNames[s]
	if !ok {
		return nil, errors.New("invalid order status json conversion: " + strconv.Itoa(int(s)))
	}
	return json.Marshal(name)
}

// Terminal reports whether no further updates follow for the order
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusRejected || s == OrderStatusCancelled
}

// OrderStatusFromCode maps an OrdStatus(39) value. Only the statuses the
// trader acts on are recognised.
func OrderStatusFromCode(code string) (OrderStatus, bool) {
	switch code {
	case "0":
		return OrderStatusNew, true
	case "2":
		return OrderStatusFilled, true
	case "4":
		return OrderStatusCancelled, true
	case "8":
		return OrderStatusRejected, true
	}
	return 0, false
}

// Code returns the OrdStatus(39) value, empty for CancelRejected
func (s OrderStatus) Code() string {
	switch s {
	case OrderStatusNew:
		return "0"
	case OrderStatusFilled:
		return "2"
	case OrderStatusCancelled:
		return "4"
	case OrderStatusRejected:
		return "8"
	}
	return ""
}
