package state

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Ticket is an inbound or historical customer claim record.
type Ticket struct {
	ID              string `json:"id" validate:"required"`
	Category1       string `json:"category_1"`
	Category2       string `json:"category_2"`
	Category3       string `json:"category_3"`
	Status          string `json:"status"`
	CreatedBy       string `json:"created_by"`
	EIC             string `json:"eic"`
	Email           string `json:"email" validate:"required,email"`
	RequestContent  string `json:"request_content" validate:"required"`
	ResponseContent string `json:"response_content,omitempty"` // search results only
}

type Address struct {
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
	City        string `json:"city"`
	ZipCode     string `json:"zip_code"`
	Country     string `json:"country"`
}

type Customer struct {
	CustomerID       string   `json:"customer_id"`
	FirstName        string   `json:"first_name"`
	LastName         string   `json:"last_name"`
	IDCardNum        string   `json:"id_card_num"`
	PermanentAddress Address  `json:"permanent_residence_address"`
	ContactAddress   *Address `json:"contact_address,omitempty"` // falls back to PermanentAddress
	Email            string   `json:"email"`
	Phone            string   `json:"phone"`
}

type ProductFamily string

const (
	ProductFamilyElectricity ProductFamily = "electricity"
	ProductFamilyGas         ProductFamily = "gas"
)

func (f ProductFamily) Valid() bool {
	return f == ProductFamilyElectricity || f == ProductFamilyGas
}

type ConsumptionPoint struct {
	ConsumptionPointID string        `json:"consumption_point_id"`
	CustomerID         string        `json:"customer_id"`
	ProductFamily      ProductFamily `json:"product_family"`
	ContractID         string        `json:"contract_id,omitempty"`
	Address            Address       `json:"address"`
}

type Contract struct {
	ContractID           string `json:"contract_id"`
	CustomerID           string `json:"customer_id"`
	ConsumptionPoint     string `json:"consumption_point"`
	ProductID            string `json:"product_id"`
	PointOfSale          string `json:"point_of_sale"`
	SalesPersonID        string `json:"sales_person_id,omitempty"`
	CustomerSignDate     string `json:"customer_sign_date"`
	StartDate            string `json:"start_date"`
	EndDate              string `json:"end_date,omitempty"`
	AdvancePaymentAmount Amount `json:"advance_payment_amount"`
}

type Payment struct {
	PaymentID         string `json:"payment_id"`
	ContractID        string `json:"contract_id"`
	PayerAccount      string `json:"payer_account"`
	PayeeAccount      string `json:"payee_account"`
	DueAmount         Amount `json:"due_amount"`
	ActualAmount      Amount `json:"actual_amount"`
	DueDate           string `json:"due_date"`
	ActualPaymentDate string `json:"actual_payment_date,omitempty"`
	VariableSymbol    string `json:"variable_symbol"`
	ConstantSymbol    string `json:"constant_symbol"`
	SpecificSymbol    string `json:"specific_symbol"`
	Message           string `json:"message,omitempty"`
}

// ContractPayments groups the payments fetched for one contract id.
type ContractPayments struct {
	ContractID string    `json:"contract_id"`
	Payments   []Payment `json:"payments"`
}

// Amount is a monetary value the CRM sends either as a JSON number or a string.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(n.String())
	return nil
}

// SimilarClaim is one entry of the drafted answer.
type SimilarClaim struct {
	ID         string `json:"id"`
	Summary    string `json:"summary"`
	Resolution string `json:"resolution"`
}

// StructuredResponse is the terminal output of a conversation.
type StructuredResponse struct {
	SimilarClaims     []SimilarClaim `json:"similar_claims"`
	SuggestedResponse string         `json:"suggested_response"`
}
