package http

import (
	"net/http"

	"github.com/artpar/adminkit/core/asset"
	"github.com/artpar/adminkit/core/schema"
	"github.com/go-chi/chi/v5"
)

// AssetsResponse lists the plugin assets in registration order.
type AssetsResponse struct {
	Scripts []asset.Asset `json:"scripts"`
	Styles  []asset.Asset `json:"styles"`
}

// CardValue is a resolved dashboard card.
type CardValue struct {
	schema.CardData
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// DashboardResponse is a dashboard with its cards resolved.
type DashboardResponse struct {
	Name  string      `json:"name"`
	Slug  string      `json:"slug"`
	Group string      `json:"group,omitempty"`
	Cards []CardValue `json:"cards"`
}

// handleSchema handles GET {base}/_schema
func (c *Channel) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.registry.Serialize())
}

// handleResourceSchema handles GET {base}/_schema/{resource}
func (c *Channel) handleResourceSchema(w http.ResponseWriter, r *http.Request) {
	res, ok := c.registry.Resource(chi.URLParam(r, "resource"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "resource not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleAssets handles GET {base}/_assets
func (c *Channel) handleAssets(w http.ResponseWriter, r *http.Request) {
	resp := AssetsResponse{Scripts: []asset.Asset{}, Styles: []asset.Asset{}}
	if c.assets != nil {
		resp.Scripts = append(resp.Scripts, c.assets.Scripts()...)
		resp.Styles = append(resp.Styles, c.assets.Styles()...)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDashboard handles GET {base}/_dashboards/{dashboard}. A card whose
// resolver fails carries the error instead of a value.
func (c *Channel) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, ok := c.registry.Dashboard(chi.URLParam(r, "dashboard"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "dashboard not found", nil)
		return
	}

	resp := DashboardResponse{Name: d.Name, Slug: d.Slug, Group: d.Group, Cards: make([]CardValue, 0, len(d.Cards))}
	for _, card := range d.Cards {
		cv := CardValue{CardData: card}
		if card.Resolve != nil {
			v, err := card.Resolve(r.Context())
			if err != nil {
				c.logger.Warn().Err(err).Str("dashboard", d.Slug).Str("card", card.Slug).Msg("card resolve failed")
				cv.Error = err.Error()
			} else {
				cv.Value = v
			}
		}
		resp.Cards = append(resp.Cards, cv)
	}
	writeJSON(w, http.StatusOK, resp)
}
