package driver

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hazyhaar/autobuy/order"
	"github.com/hazyhaar/autobuy/platform"
)

// PurchasingAgent is a third-party buying service that accepts a product
// link. Template holds one %s for the query-escaped product URL.
type PurchasingAgent struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
}

// DefaultAgents are suggested for platforms that only sell through agents.
var DefaultAgents = []PurchasingAgent{
	{Name: "Superbuy", Template: "https://www.superbuy.com/en/page/buy?url=%s"},
	{Name: "CSSBuy", Template: "https://www.cssbuy.com/item.html?url=%s"},
	{Name: "Sugargoo", Template: "https://www.sugargoo.com/#/home/productDetail?productLink=%s"},
}

// Agent hands orders for agent-only platforms to purchasing services. It
// reads the current URL and nothing else from the page.
type Agent struct {
	ID     platform.ID
	Agents []PurchasingAgent
}

func (d *Agent) Platform() platform.ID { return d.ID }
func (d *Agent) Tier() platform.Tier   { return platform.TierAgent }

func (d *Agent) Steps(order.Request, Options) []Step {
	return []Step{{Name: StepReadURL, Required: true, Action: d.suggest, Delay: -1}}
}

func (d *Agent) suggest(ctx context.Context, r *Run) (any, error) {
	current, err := r.Page.URL(ctx)
	if err != nil {
		return nil, err
	}
	product := r.Request.SupplierURL
	if id, ok := platform.Detect(current); ok && id == d.ID {
		product = current
	}

	agents := d.Agents
	if len(agents) == 0 {
		agents = DefaultAgents
	}
	escaped := url.QueryEscape(product)
	for _, a := range agents {
		r.Agents = append(r.Agents, order.Agent{Name: a.Name, URL: fmt.Sprintf(a.Template, escaped)})
	}

	r.Instructions = []string{
		fmt.Sprintf("%s does not ship directly to dropshipping customers", d.ID),
		"Open one of the suggested purchasing agents with the product link",
		fmt.Sprintf("Order quantity %d and the requested variant through the agent", r.Request.Quantity),
		"Give the agent the customer shipping address and record the agent order number",
	}
	return map[string]string{"url": product}, nil
}
