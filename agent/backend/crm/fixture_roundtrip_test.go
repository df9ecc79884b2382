package crm

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tanpawarit/claims-responder-agent/agent/backend/fixture"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

func TestClientAgainstMockCRM(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(fixture.NewRouter(fixture.NewSingleCustomer(fixture.Default())))
	defer srv.Close()

	c, err := NewClient(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	ctx := context.Background()

	customer, err := c.GetCustomerByEmail(ctx, "anyone@x.test")
	if err != nil {
		t.Fatalf("GetCustomerByEmail() error = %v", err)
	}
	if customer.CustomerID != "123456789" {
		t.Fatalf("customer id = %s", customer.CustomerID)
	}

	points, err := c.GetConsumptionPoints(ctx, customer.CustomerID, statex.ProductFamilyGas)
	if err != nil {
		t.Fatalf("GetConsumptionPoints() error = %v", err)
	}
	if len(points) != 1 || points[0].ConsumptionPointID != "G655498736" {
		t.Fatalf("points = %#v", points)
	}

	contracts, err := c.GetContracts(ctx, customer.CustomerID)
	if err != nil {
		t.Fatalf("GetContracts() error = %v", err)
	}
	if len(contracts) != 2 {
		t.Fatalf("len(contracts) = %d, want 2", len(contracts))
	}

	payments, err := c.GetContractPayments(ctx, customer.CustomerID, "ELC321654897")
	if err != nil {
		t.Fatalf("GetContractPayments() error = %v", err)
	}
	if len(payments) == 0 || payments[0].ContractID != "ELC321654897" {
		t.Fatalf("payments = %#v", payments)
	}

	_, err = c.GetContractPayments(ctx, customer.CustomerID, "UNKNOWN")
	if !errors.Is(err, contractx.ErrInvalidArgument) {
		t.Fatalf("unknown contract error = %v, want ErrInvalidArgument", err)
	}
}
