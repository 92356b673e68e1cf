package message

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

// DateLayout is the wire format for date-only elements such as MinHaltbarkeit.
const DateLayout = "2006-01-02"

type fragmentBuilder struct {
	newID func() string
}

// Option represents a functional option for the fragment builders
type Option func(*fragmentBuilder)

// WithIDGenerator replaces the generator used for missing correlation ids.
func WithIDGenerator(fn func() string) Option {
	return func(b *fragmentBuilder) {
		if fn != nil {
			b.newID = fn
		}
	}
}

func newFragmentBuilder(opts []Option) *fragmentBuilder {
	b := &fragmentBuilder{newID: uuid.NewString}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildAvailabilityQuery produces the body fragment of a VerfuegbarkeitAbfragen
// call: one Artikel element per item carrying its correlation id, PZN and
// quantity. Items without a correlation id get a generated one.
func BuildAvailabilityQuery(ep *Endpoint, items []AvailabilityItem, opts ...Option) ([]byte, error) {
	ns, err := ep.Namespace()
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.New("at least one item is required")
	}

	b := newFragmentBuilder(opts)
	doc, root := newFragment(ns, "verfuegbarkeitsanfrage")

	for i, item := range items {
		if err := validateLine(item.ItemID, item.Quantity); err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		id := item.CorrelationID
		if id == "" {
			id = b.newID()
		}
		article := root.CreateElement(qualified("Artikel"))
		addText(article, "Id", id)
		addText(article, "PZN", item.ItemID)
		addText(article, "Menge", strconv.Itoa(item.Quantity))
		addDate(article, "MinHaltbarkeit", item.MinShelfLife)
	}

	return doc.WriteToBytes()
}

// BuildOrder produces the body fragment of a BestellungAbsenden call.
func BuildOrder(ep *Endpoint, orderID string, positions []OrderPosition) ([]byte, error) {
	return buildOrder(ep, "Bestellung", orderID, positions, false)
}

// BuildPlaceOrder produces the body fragment of the bestellen call. It differs
// from BuildOrder in the root element and in carrying a per-position delivery
// instruction (Liefervorgabe).
func BuildPlaceOrder(ep *Endpoint, orderID string, positions []OrderPosition) ([]byte, error) {
	return buildOrder(ep, "Auftrag", orderID, positions, true)
}

func buildOrder(ep *Endpoint, rootName, orderID string, positions []OrderPosition, withInstruction bool) ([]byte, error) {
	ns, err := ep.Namespace()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(orderID) == "" {
		return nil, errors.New("order id is required")
	}
	if len(positions) == 0 {
		return nil, errors.New("at least one position is required")
	}

	doc, root := newFragment(ns, rootName)
	addText(root, "Auftragskennung", orderID)
	addText(root, "Kundennummer", ep.CustomerNumber)
	addText(root, "Filiale", ep.Branch)

	for i, pos := range positions {
		if err := validateLine(pos.ItemID, pos.Quantity); err != nil {
			return nil, fmt.Errorf("position %d: %w", i+1, err)
		}
		p := root.CreateElement(qualified("Position"))
		addText(p, "PositionsNr", strconv.Itoa(i+1))
		addText(p, "PZN", pos.ItemID)
		addText(p, "Menge", strconv.Itoa(pos.Quantity))
		addDate(p, "MinHaltbarkeit", pos.MinShelfLife)
		if withInstruction {
			addText(p, "Liefervorgabe", pos.DeliveryInstruction)
		}
	}

	return doc.WriteToBytes()
}

func newFragment(ns, rootName string) (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	root := doc.CreateElement(qualified(rootName))
	root.CreateAttr("xmlns:"+PrefixMSV3, ns)
	return doc, root
}

func validateLine(itemID string, quantity int) error {
	if strings.TrimSpace(itemID) == "" {
		return errors.New("item id is required")
	}
	if quantity <= 0 {
		return fmt.Errorf("quantity for %s must be positive, got %d", itemID, quantity)
	}
	return nil
}

// addText appends a child element only when value is non-empty. Absent
// elements mean "no constraint" to the wholesaler; empty ones are rejected
// by several of them.
func addText(parent *etree.Element, local, value string) {
	if value == "" {
		return
	}
	parent.CreateElement(qualified(local)).SetText(value)
}

func addDate(parent *etree.Element, local string, t *time.Time) {
	if t == nil || t.IsZero() {
		return
	}
	addText(parent, local, t.Format(DateLayout))
}
