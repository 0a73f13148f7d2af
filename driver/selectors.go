package driver

import (
	"maps"

	"github.com/hazyhaar/autobuy/platform"
)

// AddressSelectors locate the shipping address inputs.
type AddressSelectors struct {
	Name    string `yaml:"name"`
	Line1   string `yaml:"line1"`
	Line2   string `yaml:"line2"`
	City    string `yaml:"city"`
	State   string `yaml:"state"`
	Zip     string `yaml:"zip"`
	Country string `yaml:"country"`
	Phone   string `yaml:"phone"`
	Save    string `yaml:"save"`
}

// Selectors is the DOM table a generic driver works from. Empty fields
// disable the corresponding step.
type Selectors struct {
	VariantOptions string `yaml:"variant_options"`
	Quantity       string `yaml:"quantity"`
	OutOfStock     string `yaml:"out_of_stock"`
	BuyNow         string `yaml:"buy_now"`
	AddToCart      string `yaml:"add_to_cart"`
	CartURL        string `yaml:"cart_url"`

	Address         AddressSelectors `yaml:"address"`
	ShippingOptions string           `yaml:"shipping_options"`
	CouponInput     string           `yaml:"coupon_input"`
	CouponApply     string           `yaml:"coupon_apply"`
	PromoInput      string           `yaml:"promo_input"`
	PromoApply      string           `yaml:"promo_apply"`

	PlaceOrder         string `yaml:"place_order"`
	Confirmation       string `yaml:"confirmation"`
	OrderNumberPattern string `yaml:"order_number_pattern"`

	// OrderDetailURL is a template where {order} is replaced by the
	// supplier order number. Empty disables status checks.
	OrderDetailURL string `yaml:"order_detail_url"`
	StatusText     string `yaml:"status_text"`
	TrackingText   string `yaml:"tracking_text"`
}

// Merge returns s with every non-empty field of o applied on top.
func (s Selectors) Merge(o Selectors) Selectors {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&s.VariantOptions, o.VariantOptions)
	set(&s.Quantity, o.Quantity)
	set(&s.OutOfStock, o.OutOfStock)
	set(&s.BuyNow, o.BuyNow)
	set(&s.AddToCart, o.AddToCart)
	set(&s.CartURL, o.CartURL)
	set(&s.Address.Name, o.Address.Name)
	set(&s.Address.Line1, o.Address.Line1)
	set(&s.Address.Line2, o.Address.Line2)
	set(&s.Address.City, o.Address.City)
	set(&s.Address.State, o.Address.State)
	set(&s.Address.Zip, o.Address.Zip)
	set(&s.Address.Country, o.Address.Country)
	set(&s.Address.Phone, o.Address.Phone)
	set(&s.Address.Save, o.Address.Save)
	set(&s.ShippingOptions, o.ShippingOptions)
	set(&s.CouponInput, o.CouponInput)
	set(&s.CouponApply, o.CouponApply)
	set(&s.PromoInput, o.PromoInput)
	set(&s.PromoApply, o.PromoApply)
	set(&s.PlaceOrder, o.PlaceOrder)
	set(&s.Confirmation, o.Confirmation)
	set(&s.OrderNumberPattern, o.OrderNumberPattern)
	set(&s.OrderDetailURL, o.OrderDetailURL)
	set(&s.StatusText, o.StatusText)
	set(&s.TrackingText, o.TrackingText)
	return s
}

const defaultOrderNumberPattern = `(?i)order\s*(?:number|no\.?|id)?\s*[:#]?\s*([A-Z0-9-]*[0-9][A-Z0-9-]{4,})`

var defaultSelectors = map[platform.ID]Selectors{
	platform.AliExpress: {
		VariantOptions: `[class*="sku-item--property"] [class*="sku-item--image"], [class*="sku-item--text"]`,
		Quantity:       `[class*="comet-v2-input-number"] input, .quantity--picker input`,
		OutOfStock:     `[class*="quantity--error"], [class*="sold-out"]`,
		BuyNow:         `[class*="buy-now"], button[data-pl="buy-now"]`,
		AddToCart:      `[class*="add-to-cart"], button[data-pl="add-to-cart"]`,
		CartURL:        "https://www.aliexpress.com/p/shoppingcart/index.html",
		Address: AddressSelectors{
			Name:    `input[name="contactPerson"]`,
			Line1:   `input[name="address"]`,
			Line2:   `input[name="address2"]`,
			City:    `input[name="city"]`,
			State:   `input[name="province"]`,
			Zip:     `input[name="zip"]`,
			Country: `select[name="country"]`,
			Phone:   `input[name="mobileNo"]`,
			Save:    `[class*="address-save"] button`,
		},
		ShippingOptions:    `[class*="shipping-option"], [class*="delivery-method"] label`,
		CouponInput:        `[class*="coupon"] input`,
		CouponApply:        `[class*="coupon"] button`,
		PromoInput:         `[class*="promo-code"] input`,
		PromoApply:         `[class*="promo-code"] button`,
		PlaceOrder:         `[class*="pl-order-toal-container"] button, button[data-pl="place-order"]`,
		Confirmation:       `[class*="pay-success"], [class*="order-success"]`,
		OrderNumberPattern: `(\d{12,20})`,
		OrderDetailURL:     "https://www.aliexpress.com/p/order/detail.html?orderId={order}",
		StatusText:         `[class*="order-status"]`,
		TrackingText:       `[class*="tracking-number"], [class*="logistic-no"]`,
	},
	platform.Amazon: {
		VariantOptions: `#twister li, #variation_color_name li, #variation_size_name option`,
		Quantity:       `#quantity`,
		OutOfStock:     `#outOfStock, #availability .a-color-price`,
		BuyNow:         `#buy-now-button`,
		AddToCart:      `#add-to-cart-button`,
		CartURL:        "https://www.amazon.com/gp/cart/view.html",
		Address: AddressSelectors{
			Name:    `#address-ui-widgets-enterAddressFullName`,
			Line1:   `#address-ui-widgets-enterAddressLine1`,
			Line2:   `#address-ui-widgets-enterAddressLine2`,
			City:    `#address-ui-widgets-enterAddressCity`,
			State:   `#address-ui-widgets-enterAddressStateOrRegion`,
			Zip:     `#address-ui-widgets-enterAddressPostalCode`,
			Country: `#address-ui-widgets-countryCode-dropdown-nativeId`,
			Phone:   `#address-ui-widgets-enterAddressPhoneNumber`,
			Save:    `#address-ui-widgets-form-submit-button input`,
		},
		ShippingOptions:    `.shipping-speed label, input[name="order_0_ShippingSpeed"]`,
		CouponInput:        `#spc-gcpromoinput, input[name="claimCode"]`,
		CouponApply:        `#gcApplyButtonId input, input[name="ppw-claimCodeApplyPressed"]`,
		PlaceOrder:         `#placeYourOrder input, #submitOrderButtonId input`,
		Confirmation:       `#widget-purchaseConfirmationStatus, .a-box.a-alert-success`,
		OrderNumberPattern: `(\d{3}-\d{7}-\d{7})`,
		OrderDetailURL:     "https://www.amazon.com/gp/your-account/order-details?orderID={order}",
		StatusText:         `.od-status-message, #orderDetails .a-color-success`,
		TrackingText:       `.tracking-id, [data-test-id="tracking-id"]`,
	},
	platform.EBay: {
		VariantOptions: `.x-msku__select-box option, select.msku-sel option`,
		Quantity:       `#qtyTextBox, input[name="quantity"]`,
		OutOfStock:     `.d-quantity__availability .ux-textspans--BOLD, .msgTextAlign`,
		AddToCart:      `#atcBtn_btn_1, a[data-testid="ux-call-to-action"][href*="cart"]`,
		CartURL:        "https://cart.ebay.com/",
	},
	platform.Temu: {
		VariantOptions: `[role="radio"], [class*="sku"] [role="button"]`,
		Quantity:       `[class*="quantity"] input`,
		OutOfStock:     `[class*="soldOut"]`,
		AddToCart:      `[class*="addToCart"], button[aria-label*="Add to cart"]`,
		CartURL:        "https://www.temu.com/shopping_cart.html",
	},
	platform.Banggood: {
		VariantOptions: `.product-block .block-item`,
		Quantity:       `.product-qty input`,
		OutOfStock:     `.product-status-outstock`,
		AddToCart:      `.add-cart-btn`,
		CartURL:        "https://www.banggood.com/shopping_cart.php",
	},
	platform.Shein: {
		VariantOptions: `.product-intro__color-block, .product-intro__size-radio`,
		Quantity:       `.product-intro__qty input`,
		OutOfStock:     `.product-intro__sold-out`,
		AddToCart:      `.product-intro__add-btn button, .she-btn-black`,
		CartURL:        "https://www.shein.com/cart",
	},
	platform.DHgate: {
		VariantOptions: `.sku-item, .attr-item`,
		Quantity:       `.num-input input, input.quantity`,
		OutOfStock:     `.sold-out, .no-stock`,
		AddToCart:      `.addToCart, #addToCart, .add-to-cart`,
		CartURL:        "https://cart.dhgate.com/cart.do",
	},
	platform.CJDropshipping: {
		VariantOptions: `.variant-item, .sku-item`,
		Quantity:       `.quantity input`,
		OutOfStock:     `.out-of-stock`,
		AddToCart:      `.add-to-cart, button.addCart`,
		CartURL:        "https://cjdropshipping.com/myCJ.html#/cart",
	},
}

// DefaultSelectors returns a copy of the built-in selector tables.
func DefaultSelectors() map[platform.ID]Selectors {
	return maps.Clone(defaultSelectors)
}

// SelectorsFor returns the built-in table for id with override applied.
func SelectorsFor(id platform.ID, override Selectors) Selectors {
	return defaultSelectors[id].Merge(override)
}
