package heuristics

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mpalumbo7/receipt-parser/internal/money"
)

// Config holds extraction limits.
type Config struct {
	MaxItems int // fallback-sweep cap, default 40
}

// Extractor drives the line classifier over a normalized line sequence and
// emits a candidate receipt.
type Extractor struct {
	logger *slog.Logger
	cfg    Config
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 40
	}
	return &Extractor{logger: logger, cfg: cfg}
}

// Extract parses raw OCR text into items and totals. Classification runs in
// two passes: a pure line-repair pass that undoes common OCR artifacts, then
// a sequential scan that switches permanently into totals mode at the first
// totals label.
func (e *Extractor) Extract(raw string) *Receipt {
	lines := normalizeLines(raw)
	lines = repairInterleaved(lines)
	lines = mergeMoneyOnly(lines)

	preview, hasPreview := previewSubtotal(lines)

	r := &Receipt{}
	inTotals := false
	running := decimal.Zero

	i := 0
	for i < len(lines) {
		line := lines[i]

		if field, rest, ok := MatchTotalsLabel(line); ok {
			inTotals = true
			consumed := 1
			if rest != "" {
				if amt, err := money.Parse(rest); err == nil {
					r.setField(field, amt)
					i += consumed
					continue
				}
			}
			if i+1 < len(lines) && isMoneyOnly(lines[i+1]) {
				if amt, err := money.Parse(lines[i+1]); err == nil {
					r.setField(field, amt)
					consumed = 2
				}
			}
			i += consumed
			continue
		}

		if isDiscountLine(line) {
			i++
			continue
		}

		if inTotals {
			i++
			continue
		}

		item, consumed, ok := e.matchItem(lines, i, running, preview, hasPreview)
		if ok {
			if item.LineTotal.Sign() >= 0 {
				r.Items = append(r.Items, item)
				running = money.Round2(running.Add(item.LineTotal))
			}
			i += consumed
			continue
		}
		i++
	}

	if len(r.Items) == 0 {
		r.Items = e.fallbackSweep(lines)
	}

	e.closeTotals(r)
	r.IsSane = len(r.Items) > 0 ||
		(r.Subtotal != nil && r.Subtotal.Sign() > 0) ||
		(r.Total != nil && r.Total.Sign() > 0)
	return r
}

// matchItem tries the item shapes in priority order at lines[i] and returns
// the candidate plus how many lines it consumed.
func (e *Extractor) matchItem(lines []string, i int, running, preview decimal.Decimal, hasPreview bool) (ItemCandidate, int, bool) {
	line := lines[i]
	toks := strings.Fields(line)
	if len(toks) == 0 {
		return ItemCandidate{}, 0, false
	}

	// shape 1: qty-prefix — "2 Coffee 3.50" / "2x Coffee 3.50"
	if qty, ok := parseQtyToken(toks[0]); ok && len(toks) >= 3 {
		if unit, desc, ok := trailingMoney(strings.Join(toks[1:], " ")); ok && looksLikeItemName(desc) {
			return makeItem(desc, qty, unit, money.Round2(unit.Mul(decimal.NewFromInt(int64(qty))))), 1, true
		}
	}

	// shape 2: explicit unit then line total on one line — "Coffee 3.50 7.00"
	if len(toks) >= 3 {
		last := toks[len(toks)-1]
		prev := toks[len(toks)-2]
		if money.HasCurrencyHint(last) && money.HasCurrencyHint(prev) {
			total, errT := money.Parse(last)
			unit, errU := money.Parse(prev)
			if errT == nil && errU == nil {
				desc := strings.Join(toks[:len(toks)-2], " ")
				if looksLikeItemName(desc) {
					return makeItem(desc, impliedQty(total, unit), unit, total), 1, true
				}
			}
		}
	}

	// shape 3: two-line unit then total — "Coffee 3.50" / "7.00"
	if unit, desc, ok := trailingMoney(line); ok && looksLikeItemName(desc) {
		if i+1 < len(lines) && isMoneyOnly(lines[i+1]) {
			if total, err := money.Parse(lines[i+1]); err == nil {
				return makeItem(desc, impliedQty(total, unit), unit, total), 2, true
			}
		}
	}

	// shape 4: qty-suffix — "Cookie 2x 2.00" / "Cookie 2 x 2.00"
	if unit, rest, ok := trailingMoney(line); ok {
		if qty := quantityIn(rest); qty > 1 {
			desc := stripQuantity(rest)
			if looksLikeItemName(desc) {
				return makeItem(desc, qty, unit, money.Round2(unit.Mul(decimal.NewFromInt(int64(qty))))), 1, true
			}
		}
	}

	// shape 5: single trailing price — "Coffee 3.50"
	if unit, desc, ok := trailingMoney(line); ok && looksLikeItemName(desc) {
		return makeItem(desc, 1, unit, unit), 1, true
	}

	// shape 6: bare description plus a money-only next line
	if !endsInPrice(line) && i+1 < len(lines) && isMoneyOnly(lines[i+1]) && looksLikeItemName(line) {
		amt, err := money.Parse(lines[i+1])
		if err != nil {
			return ItemCandidate{}, 0, false
		}
		qty := quantityIn(line)
		desc := stripQuantity(line)
		if qty > 1 {
			return e.breakTie(desc, qty, amt, running, preview, hasPreview), 2, true
		}
		// quantity 1: unit and total coincide; the subtotal-proximity
		// tie-break is only meaningful right before the totals block
		if i+2 < len(lines) {
			if _, _, isLabel := MatchTotalsLabel(lines[i+2]); isLabel {
				return e.breakTie(desc, qty, amt, running, preview, hasPreview), 2, true
			}
		}
		return makeItem(desc, 1, amt, amt), 2, true
	}

	return ItemCandidate{}, 0, false
}

// breakTie resolves the ambiguous money-as-unit-price vs money-as-line-total
// reading by previewing the printed subtotal: whichever interpretation keeps
// the running item sum closer wins; ties favor unit price, as does a receipt
// with no printed subtotal at all.
func (e *Extractor) breakTie(desc string, qty int, amt, running, preview decimal.Decimal, hasPreview bool) ItemCandidate {
	q := decimal.NewFromInt(int64(qty))
	asUnit := makeItem(desc, qty, amt, money.Round2(amt.Mul(q)))
	asTotal := makeItem(desc, qty, money.Round2(amt.Div(q)), amt)

	if !hasPreview {
		return asUnit
	}
	unitGap := money.Round2(running.Add(asUnit.LineTotal)).Sub(preview).Abs()
	totalGap := money.Round2(running.Add(asTotal.LineTotal)).Sub(preview).Abs()
	if totalGap.LessThan(unitGap) {
		e.logger.Debug("heuristics.tiebreak.total", "desc", desc, "qty", qty, "amount", money.Format(amt))
		return asTotal
	}
	return asUnit
}

func makeItem(desc string, qty int, unit, total decimal.Decimal) ItemCandidate {
	return ItemCandidate{
		Description: strings.TrimSpace(desc),
		Quantity:    decimal.NewFromInt(int64(qty)),
		UnitPrice:   unit,
		LineTotal:   total,
	}
}

// impliedQty infers quantity as round(total/unit), never below 1.
func impliedQty(total, unit decimal.Decimal) int {
	if unit.Sign() <= 0 {
		return 1
	}
	q := int(total.Div(unit).Round(0).IntPart())
	if q < 1 {
		return 1
	}
	return q
}

// fallbackSweep rescans every line for the plain "description ending in a
// price" shape when the main pass found nothing.
func (e *Extractor) fallbackSweep(lines []string) []ItemCandidate {
	var items []ItemCandidate
	seen := make(map[string]struct{})
	for _, line := range lines {
		if _, _, ok := MatchTotalsLabel(line); ok {
			continue
		}
		if isDiscountLine(line) {
			continue
		}
		unit, desc, ok := trailingMoney(line)
		if !ok || unit.Sign() < 0 {
			continue
		}
		desc = strings.TrimSpace(desc)
		if len(desc) < 2 {
			continue
		}
		key := strings.ToLower(desc) + "|" + money.Format(unit)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, makeItem(desc, 1, unit, unit))
		if len(items) >= e.cfg.MaxItems {
			e.logger.Warn("heuristics.sweep.capped", "max_items", e.cfg.MaxItems)
			break
		}
	}
	return items
}

// closeTotals fills in a missing subtotal from the items sum and a missing
// total from subtotal+tax+tip, re-rounding after each addition.
func (e *Extractor) closeTotals(r *Receipt) {
	if len(r.Items) == 0 {
		return
	}
	if r.Subtotal == nil {
		s := r.ItemsSum()
		r.Subtotal = &s
	}
	if r.Total == nil {
		t := *r.Subtotal
		if r.Tax != nil {
			t = money.Round2(t.Add(*r.Tax))
		}
		if r.Tip != nil {
			t = money.Round2(t.Add(*r.Tip))
		}
		r.Total = &t
	}
}

// normalizeLines splits raw OCR text into trimmed, non-empty lines.
func normalizeLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(strings.TrimSpace(line), "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// previewSubtotal scans ahead once for a printed subtotal so the ambiguous
// tie-break has a target before the main pass runs.
func previewSubtotal(lines []string) (decimal.Decimal, bool) {
	for i, line := range lines {
		field, rest, ok := MatchTotalsLabel(line)
		if !ok || field != FieldSubtotal {
			continue
		}
		if rest != "" {
			if amt, err := money.Parse(rest); err == nil {
				return amt, true
			}
		}
		if i+1 < len(lines) && isMoneyOnly(lines[i+1]) {
			if amt, err := money.Parse(lines[i+1]); err == nil {
				return amt, true
			}
		}
	}
	return decimal.Zero, false
}

// repairInterleaved undoes the OCR artifact where a unit price printed
// between two item names gets attributed to the wrong one: for the triple
// [desc-only, desc+price, price-only] the middle line's price is spliced
// onto the first line, leaving the middle as a bare description.
func repairInterleaved(lines []string) []string {
	out := make([]string, len(lines))
	copy(out, lines)
	for i := 0; i+2 < len(out); i++ {
		if endsInPrice(out[i]) || !looksLikeItemName(out[i]) {
			continue
		}
		if _, _, isLabel := MatchTotalsLabel(out[i]); isLabel {
			continue
		}
		price, desc, ok := trailingMoney(out[i+1])
		if !ok || !looksLikeItemName(desc) {
			continue
		}
		// middle line must carry exactly one trailing money token
		if endsInPrice(desc) {
			continue
		}
		if !isMoneyOnly(out[i+2]) {
			continue
		}
		out[i] = out[i] + " " + money.Format(price)
		out[i+1] = desc
	}
	return out
}

// mergeMoneyOnly appends a money-only line onto the previous line when the
// pair clearly reads as one split item line. Merging stops once a totals
// label has been seen.
func mergeMoneyOnly(lines []string) []string {
	var out []string
	seenLabel := false
	for _, line := range lines {
		if _, _, ok := MatchTotalsLabel(line); ok {
			seenLabel = true
			out = append(out, line)
			continue
		}
		if seenLabel || !isMoneyOnly(line) || len(out) == 0 {
			out = append(out, line)
			continue
		}
		prev := out[len(out)-1]
		amt, err := money.Parse(line)
		if err != nil || amt.Sign() < 0 {
			out = append(out, line)
			continue
		}
		_, _, prevIsLabel := MatchTotalsLabel(prev)
		if prevIsLabel || hasQuantityToken(prev) || endsInPrice(prev) || !looksLikeItemName(prev) {
			out = append(out, line)
			continue
		}
		out[len(out)-1] = prev + " " + strings.TrimSpace(line)
	}
	return out
}
