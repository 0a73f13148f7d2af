package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/autobuy/order"
	"github.com/hazyhaar/autobuy/platform"
)

// FullAuto drives a complete checkout from the product page to the
// place-order control.
type FullAuto struct {
	ID  platform.ID
	Sel Selectors
}

func (d *FullAuto) Platform() platform.ID { return d.ID }
func (d *FullAuto) Tier() platform.Tier   { return platform.TierFull }

func (d *FullAuto) Steps(req order.Request, opts Options) []Step {
	s := d.Sel
	steps := commonSteps(s, req)
	steps = append(steps,
		Step{Name: StepCheckAvailability, Required: true, Action: checkAvailability(s, s.BuyNow)},
		Step{Name: StepBuyNow, Required: true, Action: click(s.BuyNow), Delay: opts.PageLoad},
	)
	if req.ShippingAddress != nil {
		steps = append(steps, Step{Name: StepFillAddress, Action: fillAddress(s.Address)})
	}
	if req.ShippingMethod != "" && s.ShippingOptions != "" {
		steps = append(steps, Step{Name: StepSelectShipping, Action: selectShipping(s)})
	}
	if req.CouponCode != "" && s.CouponInput != "" {
		steps = append(steps, Step{Name: StepApplyCoupon,
			Action: applyCode(s.CouponInput, s.CouponApply, func(r order.Request) string { return r.CouponCode })})
	}
	if req.PromoCode != "" && s.PromoInput != "" {
		steps = append(steps, Step{Name: StepApplyPromo,
			Action: applyCode(s.PromoInput, s.PromoApply, func(r order.Request) string { return r.PromoCode })})
	}
	steps = append(steps, Step{Name: StepConfirmOrder, Required: true, Action: confirmOrder(s)})
	if opts.AutoConfirm {
		steps = append(steps, Step{Name: StepExtractOrder, Action: extractOrderNumber(s), Delay: -1})
	}
	return steps
}

// SemiAuto fills the cart and hands off with a checklist.
type SemiAuto struct {
	ID  platform.ID
	Sel Selectors
}

func (d *SemiAuto) Platform() platform.ID { return d.ID }
func (d *SemiAuto) Tier() platform.Tier   { return platform.TierSemi }

func (d *SemiAuto) Steps(req order.Request, _ Options) []Step {
	s := d.Sel
	steps := commonSteps(s, req)
	steps = append(steps,
		Step{Name: StepAddToCart, Required: true, Action: click(s.AddToCart)},
		Step{Name: StepInstructions, Action: func(_ context.Context, r *Run) (any, error) {
			r.Instructions = Checklist(d.ID, s, r.Request)
			return map[string]int{"count": len(r.Instructions)}, nil
		}, Delay: -1},
	)
	return steps
}

func commonSteps(s Selectors, req order.Request) []Step {
	var steps []Step
	if !req.Variant.Empty() && s.VariantOptions != "" {
		steps = append(steps, Step{Name: StepSelectVariant, Action: selectVariant(s)})
	}
	if req.Quantity > 1 && s.Quantity != "" {
		steps = append(steps, Step{Name: StepSetQuantity, Action: setQuantity(s)})
	}
	return steps
}

// Checklist builds the manual steps left to the operator after the cart was
// filled.
func Checklist(id platform.ID, s Selectors, req order.Request) []string {
	var out []string
	if s.CartURL != "" {
		out = append(out, fmt.Sprintf("Open the %s cart: %s", id, s.CartURL))
	} else {
		out = append(out, fmt.Sprintf("Open the %s cart", id))
	}
	out = append(out, fmt.Sprintf("Check the item and quantity (%d)", req.Quantity))
	if !req.Variant.Empty() {
		var parts []string
		if req.Variant.Color != "" {
			parts = append(parts, "color "+req.Variant.Color)
		}
		if req.Variant.Size != "" {
			parts = append(parts, "size "+req.Variant.Size)
		}
		out = append(out, "Check the selected variant: "+strings.Join(parts, ", "))
	}
	out = append(out, "Proceed to checkout")
	if a := req.ShippingAddress; a != nil {
		out = append(out, fmt.Sprintf("Ship to %s, %s, %s %s, %s", a.Name, a.Line1, a.Zip, a.City, a.Country))
	} else {
		out = append(out, "Enter the customer shipping address")
	}
	if req.ShippingMethod != "" {
		out = append(out, "Select shipping method: "+req.ShippingMethod)
	}
	if req.CouponCode != "" {
		out = append(out, "Apply coupon: "+req.CouponCode)
	}
	if req.PromoCode != "" {
		out = append(out, "Apply promo code: "+req.PromoCode)
	}
	out = append(out, "Place the order and record the supplier order number")
	return out
}
