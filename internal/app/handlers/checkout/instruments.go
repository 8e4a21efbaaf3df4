package checkout

import (
	"context"

	"stayflow/internal/app/policies"
	"stayflow/internal/app/queries"
)

type ListSavedInstrumentsQuery struct {
	CustomerRef string
}

func (q ListSavedInstrumentsQuery) Key() string { return "checkout.list_saved_instruments" }

type SavedInstrumentView struct {
	Ref      string `json:"ref"`
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
	Expired  bool   `json:"expired"`
}

// ListSavedInstrumentsHandler lists a customer's reusable card instruments so
// checkout can offer the saved-instrument flow. Expired cards are included
// and flagged; the client decides whether to show them.
type ListSavedInstrumentsHandler struct {
	Card policies.CardRail
}

func (h *ListSavedInstrumentsHandler) Handle(ctx context.Context, q ListSavedInstrumentsQuery) ([]SavedInstrumentView, error) {
	instruments, err := h.Card.ListSavedInstruments(ctx, q.CustomerRef)
	if err != nil {
		return nil, err
	}
	views := make([]SavedInstrumentView, 0, len(instruments))
	for _, in := range instruments {
		views = append(views, SavedInstrumentView{
			Ref:      in.Ref,
			Brand:    in.Brand,
			Last4:    in.Last4,
			ExpMonth: in.ExpMonth,
			ExpYear:  in.ExpYear,
			Expired:  in.Expired,
		})
	}
	return views, nil
}

var _ queries.Handler[ListSavedInstrumentsQuery, []SavedInstrumentView] = (*ListSavedInstrumentsHandler)(nil)
