package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/artpar/adminkit/core/convention"
)

// CardResolver computes the value displayed by a dashboard card.
type CardResolver func(ctx context.Context) (any, error)

// CardSpec builds one dashboard widget.
type CardSpec struct {
	name        string
	component   string
	width       int
	description string
	resolve     CardResolver
}

// CardData is the compiled card.
type CardData struct {
	Name        string       `json:"name" yaml:"name"`
	Slug        string       `json:"slug" yaml:"slug"`
	Component   string       `json:"component" yaml:"component"`
	Width       int          `json:"width" yaml:"width"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Resolve     CardResolver `json:"-" yaml:"-"`
}

// Card starts a card rendered by the "Value" component at full width.
func Card(name string) *CardSpec {
	return &CardSpec{name: strings.TrimSpace(name), component: "Value", width: 12}
}

func (c *CardSpec) Component(name string) *CardSpec   { c.component = name; return c }
func (c *CardSpec) Description(text string) *CardSpec { c.description = text; return c }

// Width sets the column span on a 12 column grid.
func (c *CardSpec) Width(cols int) *CardSpec {
	if cols < 1 {
		cols = 1
	}
	if cols > 12 {
		cols = 12
	}
	c.width = cols
	return c
}

// Resolve sets the function computing the card value.
func (c *CardSpec) Resolve(fn CardResolver) *CardSpec { c.resolve = fn; return c }

// DashboardSpec builds a named page of cards.
type DashboardSpec struct {
	name                string
	slug                string
	group               string
	displayInNavigation bool
	cards               []*CardSpec
}

// DashboardData is the compiled dashboard.
type DashboardData struct {
	Name                string     `json:"name" yaml:"name"`
	Slug                string     `json:"slug" yaml:"slug"`
	Group               string     `json:"group,omitempty" yaml:"group,omitempty"`
	DisplayInNavigation bool       `json:"displayInNavigation" yaml:"displayInNavigation"`
	Cards               []CardData `json:"cards" yaml:"cards"`
}

// Dashboard starts a dashboard shown in navigation.
func Dashboard(name string) *DashboardSpec {
	return &DashboardSpec{name: strings.TrimSpace(name), displayInNavigation: true}
}

// Name returns the display name.
func (d *DashboardSpec) Name() string { return d.name }

// ID returns the current slug.
func (d *DashboardSpec) ID() string {
	if d.slug != "" {
		return d.slug
	}
	return convention.ParamCase(d.name)
}

func (d *DashboardSpec) Slug(slug string) *DashboardSpec   { d.slug = convention.ParamCase(slug); return d }
func (d *DashboardSpec) Group(group string) *DashboardSpec { d.group = group; return d }
func (d *DashboardSpec) HideFromNavigation() *DashboardSpec {
	d.displayInNavigation = false
	return d
}

// Cards appends cards in display order.
func (d *DashboardSpec) Cards(cards ...*CardSpec) *DashboardSpec {
	d.cards = append(d.cards, cards...)
	return d
}

// Compile validates the dashboard and returns its snapshot.
func (d *DashboardSpec) Compile() (DashboardData, error) {
	if d.name == "" {
		return DashboardData{}, fmt.Errorf("dashboard: %w", ErrEmptyName)
	}
	cards := make([]CardData, 0, len(d.cards))
	seen := make(map[string]bool, len(d.cards))
	for _, c := range d.cards {
		if c.name == "" {
			return DashboardData{}, fmt.Errorf("dashboard %q: card: %w", d.name, ErrEmptyName)
		}
		slug := convention.ParamCase(c.name)
		if seen[slug] {
			return DashboardData{}, &DuplicateCardError{Dashboard: d.name, Card: c.name}
		}
		seen[slug] = true
		cards = append(cards, CardData{
			Name:        c.name,
			Slug:        slug,
			Component:   c.component,
			Width:       c.width,
			Description: c.description,
			Resolve:     c.resolve,
		})
	}
	return DashboardData{
		Name:                d.name,
		Slug:                d.ID(),
		Group:               d.group,
		DisplayInNavigation: d.displayInNavigation,
		Cards:               cards,
	}, nil
}

// Card returns the card with the given slug.
func (d DashboardData) Card(slug string) (CardData, bool) {
	for _, c := range d.Cards {
		if c.Slug == slug {
			return c, true
		}
	}
	return CardData{}, false
}
