package wizard

import (
	"encoding/json"
	"sync"

	"hpcredit/internal/domain"
	"hpcredit/pkg/errors"
	"hpcredit/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// State is the serializable part of a wizard session. Everything the wizard
// has collected or derived lives here; runtime wiring (collaborators, locks,
// in-flight fetch bookkeeping) lives on Session.
type State struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	FlowKind  domain.FlowKind `json:"flow_kind"`
	StepIndex int             `json:"step_index"`
	Completed bool            `json:"completed"`

	Profile    domain.Profile    `json:"profile"`
	Employment domain.Employment `json:"employment"`

	MerchantID string                `json:"merchant_id"`
	BranchID   string                `json:"branch_id"`
	Items      []domain.ShoppingItem `json:"items"`

	// Derived slots, owned by the recomputation graph.
	Branches    []domain.Branch           `json:"branches,omitempty"`
	Categories  []domain.Category         `json:"categories,omitempty"`
	Products    []domain.CreditProduct    `json:"products,omitempty"`
	ProductID   string                    `json:"product_id"`
	TermMonths  int                       `json:"term_months"`
	Calculation *domain.CalculationResult `json:"calculation,omitempty"`

	Capture    Capture                     `json:"capture"`
	References []domain.Reference          `json:"references,omitempty"`
	Documents  []domain.DocumentAttachment `json:"documents,omitempty"`

	Pad       *SignaturePad `json:"pad,omitempty"`
	TypedName string        `json:"typed_name"`
	Agreed    bool          `json:"agreed"`

	DraftID         *uuid.UUID `json:"draft_id,omitempty"`
	ReferenceNumber string     `json:"reference_number,omitempty"`
	StepError       string     `json:"step_error,omitempty"`
}

// Session is one applicant's wizard run. All state is owned exclusively by
// the session; methods serialize access through a single lock, mirroring the
// cooperative single-threaded interaction model of the form.
type Session struct {
	mu   sync.Mutex
	wg   sync.WaitGroup
	deps Deps
	log  logger.Logger
	flow *Flow

	State
}

// NewSession builds a session for the given applicant and flow, seeded with
// the stored profile and employment records (zero-valued for a first-time
// applicant). If the loaded profile already carries identity data, the full
// flow opens directly at Personal Information.
func NewSession(userID uuid.UUID, kind domain.FlowKind, profile domain.Profile, employment domain.Employment, deps Deps, log logger.Logger) *Session {
	flow := FlowFor(kind)
	profile.UserID = userID
	employment.UserID = userID

	s := &Session{
		deps: deps,
		log:  log,
		flow: flow,
		State: State{
			ID:         uuid.New(),
			UserID:     userID,
			FlowKind:   flow.Kind,
			Profile:    profile,
			Employment: employment,
			Items:      []domain.ShoppingItem{{Quantity: 1}},
			Capture:    Capture{Stage: CaptureStart},
			Pad:        NewSignaturePad(600, 200),
		},
	}

	if flow.Kind == domain.FlowFull && profile.HasIdentity() {
		s.StepIndex = flow.IndexOf(StepPersonalInfo)
	}
	return s
}

// Restore rebuilds a session from a snapshot. In-flight fetches are not part
// of a snapshot, so any derived slot whose dependency is set but whose value
// is missing gets its fetch re-issued.
func Restore(snap *Snapshot, deps Deps, log logger.Logger) (*Session, error) {
	var st State
	if err := json.Unmarshal(snap.State, &st); err != nil {
		return nil, errors.Wrap(err, "failed to decode session snapshot")
	}
	if st.Pad == nil {
		st.Pad = NewSignaturePad(600, 200)
	}
	s := &Session{
		deps:  deps,
		log:   log,
		flow:  FlowFor(st.FlowKind),
		State: st,
	}
	s.mu.Lock()
	s.resumeFetches()
	s.mu.Unlock()
	return s, nil
}

// Snapshot is the wire form of a persisted session.
type Snapshot struct {
	ID     uuid.UUID       `json:"id"`
	UserID uuid.UUID       `json:"user_id"`
	State  json.RawMessage `json:"state"`
}

// Snapshot serializes the session state under the session lock.
func (s *Session) Snapshot() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(&s.State)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode session state")
	}
	return &Snapshot{ID: s.State.ID, UserID: s.State.UserID, State: data}, nil
}

// View returns a copy of the current state for read-only rendering.
func (s *Session) View() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

// CurrentStep returns the step the session is on.
func (s *Session) CurrentStep() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flow.Steps[s.StepIndex]
}

// Settle blocks until all in-flight derived-slot fetches have resolved.
// Intended for tests and shutdown, never for request handling.
func (s *Session) Settle() {
	s.wg.Wait()
}

// UpdateProfile applies a manual edit of the personal-information form.
func (s *Session) UpdateProfile(p domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UserID = s.UserID
	p.UpdatedAt = s.Profile.UpdatedAt
	s.Profile = p
}

// UpdateEmployment applies a manual edit of the employment form.
func (s *Session) UpdateEmployment(e domain.Employment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.UserID = s.UserID
	e.UpdatedAt = s.Employment.UpdatedAt
	s.Employment = e
}

// TotalAmount is the sum of price*quantity over valid items only.
func (s *Session) TotalAmount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalLocked()
}

func (s *Session) totalLocked() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

func (s *Session) validItemsLocked() []domain.ShoppingItem {
	var items []domain.ShoppingItem
	for _, item := range s.Items {
		if item.Valid() {
			items = append(items, item)
		}
	}
	return items
}

// SetItems replaces the shopping item rows. At least one row must remain;
// rows may be incomplete, they just will not count toward the total.
func (s *Session) SetItems(items []domain.ShoppingItem) error {
	if len(items) == 0 {
		return errors.ErrMinimumOneItem
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.totalLocked()
	s.Items = items
	if !s.totalLocked().Equal(before) {
		s.recomputeProducts()
		s.recomputeCalculation()
	}
	return nil
}

// SetMerchant selects (or clears) the merchant and triggers recomputation of
// every dependent slot.
func (s *Session) SetMerchant(merchantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MerchantID == merchantID {
		return
	}
	s.MerchantID = merchantID
	s.recomputeBranchesAndCategories()
	s.recomputeProducts()
	s.recomputeCalculation()
}

// SetBranch selects a branch within the chosen merchant.
func (s *Session) SetBranch(branchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BranchID = branchID
}

// SelectProduct chooses a credit product from the eligible list. Changing the
// product resets the selected term, forcing re-selection before a calculation
// can exist.
func (s *Session) SelectProduct(productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.productLocked(productID) == nil {
		return errors.ErrUnknownProduct
	}
	if s.ProductID == productID {
		return nil
	}
	s.ProductID = productID
	s.TermMonths = 0
	s.recomputeCalculation()
	return nil
}

// SelectTerm chooses a term for the selected product. The term must be one of
// the candidates generated for the product by the session's flow.
func (s *Session) SelectTerm(termMonths int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	product := s.productLocked(s.ProductID)
	if product == nil {
		return errors.ErrNoProductSelected
	}
	valid := false
	for _, t := range s.flow.TermOptions(product) {
		if t == termMonths {
			valid = true
			break
		}
	}
	if !valid {
		return errors.ErrTermOutOfRange
	}
	if s.TermMonths == termMonths {
		return nil
	}
	s.TermMonths = termMonths
	s.recomputeCalculation()
	return nil
}

// TermOptions returns the candidate terms for the currently selected product.
func (s *Session) TermOptions() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flow.TermOptions(s.productLocked(s.ProductID))
}

func (s *Session) productLocked(productID string) *domain.CreditProduct {
	if productID == "" {
		return nil
	}
	for i := range s.Products {
		if s.Products[i].ID == productID {
			return &s.Products[i]
		}
	}
	return nil
}

// AddReference records a personal reference. References are held locally
// until the draft exists.
func (s *Session) AddReference(ref domain.Reference) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref.ID = uuid.New()
	ref.Synced = false
	s.References = append(s.References, ref)
	return ref.ID
}

// RemoveReference drops a reference by id.
func (s *Session) RemoveReference(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ref := range s.References {
		if ref.ID == id {
			s.References = append(s.References[:i], s.References[i+1:]...)
			return true
		}
	}
	return false
}

// AddDocument records a supporting document for later upload.
func (s *Session) AddDocument(docType domain.DocumentType, fileName string, content []byte) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := domain.DocumentAttachment{
		ID:       uuid.New(),
		Type:     docType,
		FileName: fileName,
		Content:  content,
	}
	s.Documents = append(s.Documents, doc)
	return doc.ID
}

// RemoveDocument drops a document that has not been uploaded yet.
func (s *Session) RemoveDocument(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, doc := range s.Documents {
		if doc.ID == id && !doc.Uploaded {
			s.Documents = append(s.Documents[:i], s.Documents[i+1:]...)
			return true
		}
	}
	return false
}

// SetConsent records the typed name and agreement flag of the consent form.
func (s *Session) SetConsent(typedName string, agreed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TypedName = typedName
	s.Agreed = agreed
}
