package usecase

import (
	"github.com/shopspring/decimal"

	"minishop/internal/domain/model"
)

// CartLine はカート明細を商品に解決した結果。
// ResolvedLine か DanglingLine のどちらか。
type CartLine interface {
	CartItem() model.CartItem
	isCartLine()
}

// 商品が見つかった明細
type ResolvedLine struct {
	Item    model.CartItem
	Product model.Product
}

// 商品が消えている明細（本来は起きない）
type DanglingLine struct {
	Item model.CartItem
}

func (l ResolvedLine) CartItem() model.CartItem { return l.Item }
func (l DanglingLine) CartItem() model.CartItem { return l.Item }

func (ResolvedLine) isCartLine() {}
func (DanglingLine) isCartLine() {}

func (l ResolvedLine) LineTotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(l.Item.Quantity))
}

// カート順を保ったまま商品に解決する
func resolveCartLines(items []model.CartItem, products []model.Product) []CartLine {
	byID := make(map[int64]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]CartLine, 0, len(items))
	for _, it := range items {
		if p, ok := byID[it.ProductID]; ok {
			lines = append(lines, ResolvedLine{Item: it, Product: p})
			continue
		}
		lines = append(lines, DanglingLine{Item: it})
	}
	return lines
}

// 在庫を減らす前に全明細をチェックする。最初に見つかった問題を返す。
func validateCartLines(lines []CartLine) error {
	for _, line := range lines {
		switch l := line.(type) {
		case DanglingLine:
			return invalidState("cart item %d references missing product %d", l.Item.ID, l.Item.ProductID)
		case ResolvedLine:
			if l.Item.Quantity < 1 {
				return invalidState("invalid quantity %d for product %q", l.Item.Quantity, l.Product.Name)
			}
			if l.Item.Quantity > l.Product.Stock {
				return conflict("insufficient stock for product %q (id=%d): requested %d, available %d",
					l.Product.Name, l.Product.ID, l.Item.Quantity, l.Product.Stock)
			}
		}
	}
	return nil
}

func distinctProductIDs(items []model.CartItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}
