package response

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/shopspring/decimal"

	"github.com/sirosfoundation/go-msv3/pkg/availability"
	"github.com/sirosfoundation/go-msv3/pkg/message"
)

// Element names differ between wholesalers; each field lists the names seen
// in the wild, in lookup order.
var (
	fieldItemID       = []string{"PZN", "Pzn", "AnfragePzn", "Artikelnummer"}
	fieldCorrelation  = []string{"Id", "Referenz"}
	fieldRequested    = []string{"Anfragemenge", "Menge", "Bestellmenge"}
	fieldAvailableQty = []string{"VerfuegbareMenge", "Lieferbarmenge", "Verfuegbar"}
	fieldDeliverable  = []string{"Lieferbar", "Verfuegbar"}
	fieldPurchase     = []string{"Einkaufspreis", "EKPreis", "AEP"}
	fieldRetail       = []string{"Verkaufspreis", "AVP"}
	fieldPharmacy     = []string{"Apothekenverkaufspreis", "ApoVK", "Taxe"}
	fieldHint         = []string{"Hinweis", "Bemerkung"}
	fieldBatch        = []string{"Charge", "Chargennummer"}
	fieldExpiry       = []string{"Verfallsdatum", "Verfall"}
	fieldLeadTime     = []string{"Lieferzeit", "Lieferzeitpunkt"}
	fieldInstruction  = []string{"Liefervorgabe"}
	fieldOrderID      = []string{"Auftragskennung", "Auftragsnummer", "Bestellnummer", "AuftragsId"}
	fieldOrderStatus  = []string{"Status", "Auftragsstatus"}
	fieldSuccess      = []string{"Erfolgreich", "Success"}
	fieldFailure      = []string{"Fehlertext", "Grund", "Hinweis"}
	fieldShareQty     = []string{"Menge"}
	fieldShareType    = []string{"Typ", "Art"}
	fieldShareReason  = []string{"Grund"}
	fieldShareNext    = []string{"Lieferzeitpunkt", "Liefertermin"}
	fieldShareRoute   = []string{"Tourabweichung"}
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	message.DateLayout,
	"02.01.2006",
}

// DecodeAvailability reads the positions of a VerfuegbarkeitAbfragen answer.
// Positions that carry shares but no explicit quantity get the sum of their
// immediately deliverable shares.
func DecodeAvailability(payload []byte) ([]message.AvailabilityPosition, error) {
	doc, err := parsePayload(payload, "availability")
	if err != nil {
		return nil, err
	}

	nodes := xmlquery.Find(doc, "//*[local-name()='Artikel']")
	if len(nodes) == 0 {
		return nil, &ParseError{Reason: "no Artikel elements in availability answer", Body: string(payload)}
	}

	positions := make([]message.AvailabilityPosition, 0, len(nodes))
	for i, n := range nodes {
		pos := message.AvailabilityPosition{
			ItemID:        childText(n, fieldItemID),
			CorrelationID: childText(n, fieldCorrelation),
			Hint:          childText(n, fieldHint),
			Batch:         childText(n, fieldBatch),
			Expiry:        childDate(n, fieldExpiry),
			LeadTime:      childText(n, fieldLeadTime),
			PurchasePrice: childPrice(n, fieldPurchase),
			RetailPrice:   childPrice(n, fieldRetail),
			PharmacyPrice: childPrice(n, fieldPharmacy),
		}
		if pos.ItemID == "" {
			return nil, &ParseError{Reason: fmt.Sprintf("Artikel %d has no item id", i+1), Body: string(payload)}
		}
		pos.Requested, _ = childInt(n, fieldRequested)

		qty, hasQty := childInt(n, fieldAvailableQty)
		flag, hasFlag := childBool(n, fieldDeliverable)
		shares := decodeShares(n)

		switch {
		case hasQty:
			pos.Quantity = qty
		case len(shares) > 0:
			for _, s := range shares {
				if availability.IsImmediate(s.Type) {
					pos.Quantity += s.Quantity
				}
			}
		case hasFlag && flag:
			pos.Quantity = pos.Requested
		}
		if pos.Quantity < 0 {
			pos.Quantity = 0
		}

		if hasFlag {
			pos.Deliverable = flag
		} else {
			pos.Deliverable = pos.Quantity > 0 && pos.Quantity >= pos.Requested
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// DecodeOrderResult reads the acknowledgment of a BestellungAbsenden call.
func DecodeOrderResult(payload []byte) (*message.OrderResult, error) {
	doc, err := parsePayload(payload, "order")
	if err != nil {
		return nil, err
	}

	res := &message.OrderResult{
		OrderID:       descendantText(doc, fieldOrderID),
		Status:        descendantText(doc, fieldOrderStatus),
		FailureReason: descendantText(doc, fieldFailure),
	}
	if res.OrderID == "" && res.Status == "" && res.FailureReason == "" {
		return nil, &ParseError{Reason: "order answer carries no order id or status", Body: string(payload)}
	}

	if ok, found := descendantBool(doc, fieldSuccess); found {
		res.Success = ok
	} else {
		res.Success = res.OrderID != "" && res.FailureReason == ""
	}
	if res.Success {
		res.FailureReason = ""
	}
	return res, nil
}

// DecodeOrderLines reads the per-position shares of a bestellen answer.
func DecodeOrderLines(payload []byte) ([]availability.Line, error) {
	doc, err := parsePayload(payload, "order lines")
	if err != nil {
		return nil, err
	}

	nodes := xmlquery.Find(doc, "//*[local-name()='Position']")
	if len(nodes) == 0 {
		return nil, &ParseError{Reason: "no Position elements in order answer", Body: string(payload)}
	}

	lines := make([]availability.Line, 0, len(nodes))
	for _, n := range nodes {
		line := availability.Line{
			ItemID:              childText(n, fieldItemID),
			DeliveryInstruction: childText(n, fieldInstruction),
			Shares:              decodeShares(n),
		}
		line.Ordered, _ = childInt(n, fieldRequested)
		lines = append(lines, line)
	}
	return lines, nil
}

func decodeShares(n *xmlquery.Node) []availability.Share {
	nodes := xmlquery.Find(n, ".//*[local-name()='Anteil']")
	shares := make([]availability.Share, 0, len(nodes))
	for _, s := range nodes {
		qty, _ := childInt(s, fieldShareQty)
		if qty < 0 {
			qty = 0
		}
		route, _ := childBool(s, fieldShareRoute)
		shares = append(shares, availability.Share{
			Quantity:       qty,
			Type:           childText(s, fieldShareType),
			Reason:         childText(s, fieldShareReason),
			NextDelivery:   childDate(s, fieldShareNext),
			RouteDeviation: route,
		})
	}
	return shares
}

func parsePayload(payload []byte, what string) (*xmlquery.Node, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, &ParseError{Reason: what + " answer is empty"}
	}
	doc, err := xmlquery.Parse(bytes.NewReader(payload))
	if err != nil {
		return nil, &ParseError{Reason: "decoding " + what + " answer", Body: string(payload), Err: err}
	}
	return doc, nil
}

func childText(n *xmlquery.Node, names []string) string {
	return lookupText(n, "./*[local-name()='%s']", names)
}

func descendantText(n *xmlquery.Node, names []string) string {
	return lookupText(n, "//*[local-name()='%s']", names)
}

func lookupText(n *xmlquery.Node, pattern string, names []string) string {
	for _, name := range names {
		found, err := xmlquery.Query(n, fmt.Sprintf(pattern, name))
		if err != nil || found == nil {
			continue
		}
		if text := strings.TrimSpace(found.InnerText()); text != "" {
			return text
		}
	}
	return ""
}

func childInt(n *xmlquery.Node, names []string) (int, bool) {
	text := childText(n, names)
	if text == "" {
		return 0, false
	}
	if v, err := strconv.Atoi(text); err == nil {
		return v, true
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(text, ",", "."))
	if err != nil {
		return 0, false
	}
	return int(d.IntPart()), true
}

func childBool(n *xmlquery.Node, names []string) (bool, bool) {
	return parseBool(childText(n, names))
}

func descendantBool(n *xmlquery.Node, names []string) (bool, bool) {
	return parseBool(descendantText(n, names))
}

func parseBool(text string) (bool, bool) {
	switch strings.ToLower(text) {
	case "true", "1", "ja", "yes", "j":
		return true, true
	case "false", "0", "nein", "no", "n":
		return false, true
	default:
		return false, false
	}
}

func childDate(n *xmlquery.Node, names []string) *time.Time {
	text := childText(n, names)
	if text == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return &t
		}
	}
	return nil
}

func childPrice(n *xmlquery.Node, names []string) decimal.NullDecimal {
	text := childText(n, names)
	if text == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(text, ",", "."))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
