package inventory

import "github.com/shopspring/decimal"

// WeightedAverageCost costo promedio ponderado de un agregado tras una entrada valorizada.
// NuevoCosto = ((StockActual * CostoActual) + (CantEntrada * CostoEntrada)) / (StockActual + CantEntrada)
// Con stock actual no positivo el costo de la entrada reemplaza al anterior.
func WeightedAverageCost(onHand int64, currentCost decimal.Decimal, incoming int64, incomingCost decimal.Decimal) decimal.Decimal {
	if incoming <= 0 {
		return currentCost
	}
	if onHand <= 0 {
		return incomingCost
	}
	stock := decimal.NewFromInt(onHand)
	in := decimal.NewFromInt(incoming)
	num := stock.Mul(currentCost).Add(in.Mul(incomingCost))
	return num.Div(stock.Add(in)).Round(4)
}
