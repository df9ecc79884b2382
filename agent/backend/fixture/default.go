package fixture

import statex "github.com/tanpawarit/claims-responder-agent/agent/state"

var pragueContact = statex.Address{
	Street:      "Antonína Dvořáka",
	HouseNumber: "654",
	City:        "Praha 5",
	ZipCode:     "15000",
	Country:     "Czech Republic",
}

// Default returns the records served by the mock CRM.
func Default() Dataset {
	contact := pragueContact
	return Dataset{
		Customers: []statex.Customer{{
			CustomerID: "123456789",
			FirstName:  "Karel",
			LastName:   "Vomáčka",
			IDCardNum:  "AB987654321",
			PermanentAddress: statex.Address{
				Street:      "Bedřicha Smetany",
				HouseNumber: "987",
				City:        "Praha 4",
				ZipCode:     "14000",
				Country:     "Czech Republic",
			},
			ContactAddress: &contact,
			Email:          "kare.vomacka@testmail.test",
			Phone:          "+420987654321",
		}},
		ConsumptionPoints: []statex.ConsumptionPoint{
			{
				ConsumptionPointID: "EL654987321",
				ProductFamily:      statex.ProductFamilyElectricity,
				ContractID:         "ELC321654897",
				Address:            pragueContact,
			},
			{
				ConsumptionPointID: "G655498736",
				ProductFamily:      statex.ProductFamilyGas,
				ContractID:         "GC546763133",
				Address:            pragueContact,
			},
		},
		Contracts: []statex.Contract{
			{
				ContractID:           "ELC321654897",
				ConsumptionPoint:     "EL654987321",
				ProductID:            "ELEKTRINA_FIX_1R",
				PointOfSale:          "ZC_PRG_4",
				SalesPersonID:        "ZAM_654321474",
				CustomerSignDate:     "2024-04-16",
				StartDate:            "2024-10-01",
				EndDate:              "2025-10-01",
				AdvancePaymentAmount: "1500",
			},
			{
				ContractID:           "GC546763133",
				ConsumptionPoint:     "G655498736",
				ProductID:            "PLYN_FIX_2R",
				PointOfSale:          "ZC_PRG_4",
				SalesPersonID:        "ZAM_654321474",
				CustomerSignDate:     "2024-04-16",
				StartDate:            "2024-05-01",
				EndDate:              "2026-05-01",
				AdvancePaymentAmount: "1500",
			},
		},
		Payments: map[string][]statex.Payment{
			"ELC321654897": advancePayments("ELC321654897", "Záloha na elektřinu"),
			"GC546763133":  advancePayments("GC546763133", "Záloha na plyn"),
		},
		Claims: defaultClaims(),
	}
}

func advancePayments(contractID, message string) []statex.Payment {
	months := []struct{ due, paid string }{
		{"2025-04-15", "2025-04-05"},
		{"2025-03-15", "2025-03-05"},
		{"2025-02-15", "2025-02-05"},
	}
	out := make([]statex.Payment, 0, len(months))
	for _, m := range months {
		out = append(out, statex.Payment{
			PaymentID:         "3546687321354",
			ContractID:        contractID,
			PayerAccount:      "6546-7324638735/1234",
			PayeeAccount:      "3548-6387321169/4321",
			DueAmount:         "1500",
			ActualAmount:      "500",
			DueDate:           m.due,
			ActualPaymentDate: m.paid,
			VariableSymbol:    contractID,
			ConstantSymbol:    "0123",
			SpecificSymbol:    "65498",
			Message:           message,
		})
	}
	return out
}

func defaultClaims() []statex.Ticket {
	claim := func(id, c2, content, response string) statex.Ticket {
		return statex.Ticket{
			ID:              id,
			Category1:       "complaint",
			Category2:       c2,
			Category3:       "advance payment",
			Status:          "closed",
			CreatedBy:       "customer",
			Email:           "archive@testmail.test",
			RequestContent:  content,
			ResponseContent: response,
		}
	}
	return []statex.Ticket{
		claim("H-1001", "billing",
			"My advance payment for electricity was charged twice this month.",
			"We confirmed the duplicate charge and refunded it within five business days."),
		claim("H-1002", "billing",
			"The invoice shows a higher advance payment than agreed in my contract.",
			"The advance was recalculated to the contracted amount and the difference credited."),
		claim("H-1003", "billing",
			"I paid only part of the gas advance because of a bank error, please do not charge a penalty.",
			"The penalty was waived and a new payment date was agreed."),
		claim("H-1004", "contract",
			"I want to lower my monthly advance payment after installing solar panels.",
			"The advance was lowered after a consumption review."),
		claim("H-1005", "billing",
			"I was charged for electricity on a consumption point I no longer use.",
			"The point was disconnected retroactively and the charge cancelled."),
		claim("H-1006", "meter",
			"The meter reading on my bill does not match my own reading.",
			"A technician verified the meter and the bill was corrected."),
		claim("H-1007", "billing",
			"My payment was not paired with the invoice because of a wrong variable symbol.",
			"Payment was paired manually and the reminder withdrawn."),
	}
}
