package tool

import (
	"github.com/cloudwego/eino/schema"
)

const (
	ToolFindRelevantClaims   = "find_relevant_claims"
	ToolGetCustomer          = "get_customer"
	ToolGetConsumptionPoints = "get_customer_consumption_points"
	ToolGetContracts         = "get_customer_contracts"
	ToolGetContractPayments  = "get_contract_payments"
)

// Catalog returns the tool descriptions bound to the planner model.
func Catalog() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: ToolFindRelevantClaims,
			Desc: "Use this tool to find relevant customer claim and complaint tickets.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"search_term": {Type: schema.String, Desc: "Full customer message to search similar claims for", Required: true},
				"k":           {Type: schema.Integer, Desc: "Number of similar claims to return, at least 5"},
			}),
		},
		{
			Name:        ToolGetCustomer,
			Desc:        "Use this tool to retrieve customer details from CRM. The customer is looked up by the incoming ticket email.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		{
			Name: ToolGetConsumptionPoints,
			Desc: "Use this tool to retrieve customer consumption points. Optionally filter them by product family based on the incoming ticket contents.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"product_family": {
					Type: schema.String,
					Desc: "Only return consumption points of this product family",
					Enum: []string{"electricity", "gas"},
				},
			}),
		},
		{
			Name:        ToolGetContracts,
			Desc:        "Use this tool to retrieve customer contracts.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		{
			Name: ToolGetContractPayments,
			Desc: "Use this tool to retrieve contract payments by contract id.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"contract_ids": {
					Type:     schema.Array,
					Desc:     "List of contract IDs for which the payments shall be retrieved",
					ElemInfo: &schema.ParameterInfo{Type: schema.String},
					Required: true,
				},
			}),
		},
	}
}

// Names lists the tool names in catalog order.
func Names() []string {
	infos := Catalog()
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return names
}
