package fixture

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

// NewRouter exposes b over the CRM REST surface.
func NewRouter(b *Backend) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	customers := router.Group("/customers")
	{
		customers.GET("/by_email", func(c *gin.Context) {
			out, err := b.GetCustomerByEmail(c.Request.Context(), c.Query("email"))
			respond(c, out, err)
		})
		customers.GET("/:customer_id/consumption_points", func(c *gin.Context) {
			family := statex.ProductFamily(c.Query("product_family"))
			out, err := b.GetConsumptionPoints(c.Request.Context(), c.Param("customer_id"), family)
			respond(c, out, err)
		})
		customers.GET("/:customer_id/contracts", func(c *gin.Context) {
			out, err := b.GetContracts(c.Request.Context(), c.Param("customer_id"))
			respond(c, out, err)
		})
		customers.GET("/customer/:customer_id/contracts/:contract_id/payments", func(c *gin.Context) {
			out, err := b.GetContractPayments(c.Request.Context(), c.Param("customer_id"), c.Param("contract_id"))
			respond(c, out, err)
		})
	}
	return router
}

func respond(c *gin.Context, out any, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, out)
	case errors.Is(err, contractx.ErrCustomerNotFound), errors.Is(err, contractx.ErrInvalidArgument):
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
	}
}
