package topstepx

import "time"

// Bar time unit values used by /api/History/retrieveBars.
const (
	BarUnitTick   = 1
	BarUnitMinute = 2
	BarUnitHour   = 3
	BarUnitDay    = 4
	BarUnitWeek   = 5
	BarUnitMonth  = 6
)

// LoginKeyRequest authenticates with username + API key.
// POST /api/Auth/loginKey
type LoginKeyRequest struct {
	UserName string `json:"userName"`
	APIKey   string `json:"apiKey"`
}

// LoginAppRequest authenticates with application credentials (authorized firms).
// POST /api/Auth/loginApp
type LoginAppRequest struct {
	UserName  string `json:"userName"`
	Password  string `json:"password"`
	DeviceID  string `json:"deviceId"`
	AppID     string `json:"appId"`
	VerifyKey string `json:"verifyKey"`
}

// AuthResponse is shared by both login endpoints and /api/Auth/validate.
type AuthResponse struct {
	Success      bool   `json:"success"`
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	Token        string `json:"token"`
}

// AccountSearchRequest filters the account list.
// POST /api/Account/search
type AccountSearchRequest struct {
	OnlyActiveAccounts bool `json:"onlyActiveAccounts"`
}

type Account struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
	CanTrade bool   `json:"canTrade"`
}

type AccountSearchResponse struct {
	Success  bool      `json:"success"`
	Accounts []Account `json:"accounts"`
}

// ContractSearchRequest lists available contracts.
// POST /api/Contract/available
type ContractSearchRequest struct {
	Live bool `json:"live"`
}

type Contract struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	TickSize    float64 `json:"tickSize"`
	TickValue   float64 `json:"tickValue"`
}

type ContractSearchResponse struct {
	Success   bool       `json:"success"`
	Contracts []Contract `json:"contracts"`
}

// RetrieveBarsRequest fetches historical bars.
// POST /api/History/retrieveBars
type RetrieveBarsRequest struct {
	ContractID        string `json:"contractId"`
	Live              bool   `json:"live"`
	StartTime         string `json:"startTime"` // RFC3339 UTC with Z suffix
	EndTime           string `json:"endTime"`
	Unit              int    `json:"unit"`
	UnitNumber        int    `json:"unitNumber"`
	Limit             int    `json:"limit"`
	IncludePartialBar bool   `json:"includePartialBar"`
}

// RawBar is the venue's compact OHLCV encoding.
type RawBar struct {
	T time.Time `json:"t"`
	O float64   `json:"o"`
	H float64   `json:"h"`
	L float64   `json:"l"`
	C float64   `json:"c"`
	V int64     `json:"v"`
}

type RetrieveBarsResponse struct {
	Success bool     `json:"success"`
	Bars    []RawBar `json:"bars"`
}

// PlaceOrderRequest places an order.
// POST /api/Order/place
// Side: 1=sell, 2=buy. Type: 1=limit, 2=market. Price required for limit orders.
type PlaceOrderRequest struct {
	AccountID  int64    `json:"accountId"`
	ContractID string   `json:"contractId"`
	Type       int      `json:"type"`
	Side       int      `json:"side"`
	Size       int      `json:"size"`
	Price      *float64 `json:"price,omitempty"`
}

type PlaceOrderResponse struct {
	Success      bool   `json:"success"`
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	OrderID      int64  `json:"orderId"`
}

// ErrorResponse is the venue's generic failure body.
type ErrorResponse struct {
	Success      bool   `json:"success"`
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}
