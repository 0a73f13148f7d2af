package driver

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hazyhaar/autobuy/dom"
	"github.com/hazyhaar/autobuy/order"
)

// Step names shared by the generic drivers.
const (
	StepSelectVariant     = "select_variant"
	StepSetQuantity       = "set_quantity"
	StepCheckAvailability = "check_availability"
	StepBuyNow            = "buy_now"
	StepAddToCart         = "add_to_cart"
	StepFillAddress       = "fill_address"
	StepSelectShipping    = "select_shipping"
	StepApplyCoupon       = "apply_coupon"
	StepApplyPromo        = "apply_promo"
	StepConfirmOrder      = "confirm_order"
	StepExtractOrder      = "extract_order_number"
	StepInstructions      = "prepare_instructions"
	StepReadURL           = "read_url"
)

func selectVariant(sel Selectors) Action {
	return func(ctx context.Context, r *Run) (any, error) {
		v := r.Request.Variant
		picked := map[string]bool{}
		var missing []string
		for _, m := range []struct{ key, value string }{{"color", v.Color}, {"size", v.Size}} {
			value := strings.TrimSpace(m.value)
			if value == "" {
				continue
			}
			ok, err := r.Page.ClickText(ctx, sel.VariantOptions, value)
			if err != nil {
				return picked, err
			}
			picked[m.key] = ok
			if !ok {
				missing = append(missing, fmt.Sprintf("%s %q", m.key, value))
			}
		}
		if len(missing) > 0 {
			return picked, fmt.Errorf("%w: %s", ErrNoMatch, strings.Join(missing, ", "))
		}
		return picked, nil
	}
}

func setQuantity(sel Selectors) Action {
	return func(ctx context.Context, r *Run) (any, error) {
		q := strconv.Itoa(r.Request.Quantity)
		if err := r.Page.Fill(ctx, sel.Quantity, q); err != nil {
			return nil, err
		}
		return map[string]int{"quantity": r.Request.Quantity}, nil
	}
}

// checkAvailability only reads the page.
func checkAvailability(sel Selectors, control string) Action {
	return func(ctx context.Context, r *Run) (any, error) {
		if sel.OutOfStock != "" {
			out, err := r.Page.Exists(ctx, sel.OutOfStock)
			if err != nil {
				return nil, err
			}
			if out {
				msg, _ := r.Page.Text(ctx, sel.OutOfStock)
				return map[string]string{"message": dom.Truncate(dom.CleanText(msg), 200)}, ErrOutOfStock
			}
		}
		if err := r.Page.WaitFor(ctx, control, r.Options.Poll); err != nil {
			return nil, err
		}
		return map[string]bool{"available": true}, nil
	}
}

func click(selector string) Action {
	return func(ctx context.Context, r *Run) (any, error) {
		if err := r.Page.WaitFor(ctx, selector, r.Options.Poll); err != nil {
			return nil, err
		}
		return nil, r.Page.Click(ctx, selector)
	}
}

func fillAddress(sel AddressSelectors) Action {
	return func(ctx context.Context, r *Run) (any, error) {
		a := r.Request.ShippingAddress
		fields := []struct{ name, selector, value string }{
			{"name", sel.Name, a.Name},
			{"line1", sel.Line1, a.Line1},
			{"line2", sel.Line2, a.Line2},
			{"city", sel.City, a.City},
			{"state", sel.State, a.State},
			{"zip", sel.Zip, a.Zip},
			{"phone", sel.Phone, a.Phone},
		}
		filled := map[string]bool{}
		var failed []string
		for _, f := range fields {
			if f.selector == "" || strings.TrimSpace(f.value) == "" {
				continue
			}
			if err := r.Page.Fill(ctx, f.selector, f.value); err != nil {
				filled[f.name] = false
				failed = append(failed, f.name)
				continue
			}
			filled[f.name] = true
		}
		if sel.Country != "" && a.Country != "" {
			if err := r.Page.Select(ctx, sel.Country, a.Country); err != nil {
				filled["country"] = false
				failed = append(failed, "country")
			} else {
				filled["country"] = true
			}
		}
		if len(failed) > 0 {
			return filled, fmt.Errorf("address fields not filled: %s", strings.Join(failed, ", "))
		}
		if sel.Save != "" {
			if ok, _ := r.Page.Exists(ctx, sel.Save); ok {
				if err := r.Page.Click(ctx, sel.Save); err != nil {
					return filled, err
				}
			}
		}
		return filled, nil
	}
}

func selectShipping(sel Selectors) Action {
	return func(ctx context.Context, r *Run) (any, error) {
		ok, err := r.Page.ClickText(ctx, sel.ShippingOptions, r.Request.ShippingMethod)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: shipping method %q", ErrNoMatch, r.Request.ShippingMethod)
		}
		return map[string]string{"method": r.Request.ShippingMethod}, nil
	}
}

func applyCode(input, apply string, code func(order.Request) string) Action {
	return func(ctx context.Context, r *Run) (any, error) {
		c := code(r.Request)
		if err := r.Page.Fill(ctx, input, c); err != nil {
			return nil, err
		}
		if apply != "" {
			if err := r.Page.Click(ctx, apply); err != nil {
				return nil, err
			}
		}
		return map[string]string{"code": c}, nil
	}
}

// confirmOrder is the only submission step. With AutoConfirm off it stops
// at the place-order control; with it on it clicks exactly once per Run.
func confirmOrder(sel Selectors) Action {
	return func(ctx context.Context, r *Run) (any, error) {
		if err := r.Page.WaitFor(ctx, sel.PlaceOrder, r.Options.PageLoad); err != nil {
			return nil, err
		}
		if !r.Options.AutoConfirm {
			r.ReadyToConfirm = true
			return map[string]bool{"autoConfirm": false}, nil
		}
		if r.submitted {
			return nil, ErrAlreadySubmitted
		}
		r.submitted = true
		if err := r.Page.Click(ctx, sel.PlaceOrder); err != nil {
			return nil, err
		}
		r.Confirmed = true
		return map[string]bool{"autoConfirm": true}, nil
	}
}

func extractOrderNumber(sel Selectors) Action {
	pattern := sel.OrderNumberPattern
	if pattern == "" {
		pattern = defaultOrderNumberPattern
	}
	re := regexp.MustCompile(pattern)
	return func(ctx context.Context, r *Run) (any, error) {
		if sel.Confirmation != "" {
			if err := r.Page.WaitFor(ctx, sel.Confirmation, r.Options.PageLoad); err != nil {
				return nil, err
			}
			if frag, err := r.Page.HTML(ctx, sel.Confirmation); err == nil {
				url, _ := r.Page.URL(ctx)
				if md, err := dom.Markdown(frag, url); err == nil {
					r.Receipt = md
				}
			}
		}
		doc, err := r.Page.HTML(ctx, "")
		if err != nil {
			return nil, err
		}
		num := dom.Find(doc, sel.Confirmation, re)
		if num == "" {
			return nil, ErrNoOrderNumber
		}
		r.OrderNumber = num
		return map[string]string{"orderNumber": num}, nil
	}
}
