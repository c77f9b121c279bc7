package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"go.uber.org/zap"

	"github.com/metrofound/lostfound-api/config"
	"github.com/metrofound/lostfound-api/models"
	"github.com/metrofound/lostfound-api/resolution"
)

// courierReturnFee is the flat courier fee in cents charged at checkout
const courierReturnFee = 1500

// Claim exported for testing purposes
type Claim struct {
	Engine *resolution.Engine
}

type claimCreateRequest struct {
	ItemID     string `json:"itemId"`
	ClaimantID string `json:"claimantId"`
	Reason     string `json:"reason"`
	Proof      string `json:"proof,omitempty"`
}

type claimDecisionRequest struct {
	Decision   string `json:"decision"`
	Reason     string `json:"reason,omitempty"`
	ReviewerID string `json:"reviewerId"`
}

// ClaimCreateHandler submits a new ownership claim against a found item
func (c Claim) ClaimCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req claimCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode claim", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := c.Engine.CreateClaim(r.Context(), req.ItemID, req.ClaimantID, req.Reason, req.Proof)
	if err != nil {
		config.ErrorStatus("failed to create claim", resolution.StatusFor(err), w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// ClaimHandler returns claims matching the query filters
func (c Claim) ClaimHandler(w http.ResponseWriter, r *http.Request) {
	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", Limit|10, err))
		Limit = 10
	}
	Page = getPage(Page, r)

	filter := resolution.ClaimFilter{
		ItemID:     r.URL.Query().Get("item_id"),
		ClaimantID: r.URL.Query().Get("claimant_id"),
		Status:     models.ClaimStatus(r.URL.Query().Get("status")),
		Limit:      Limit,
		Page:       Page,
	}

	dbResp, err := c.Engine.ListClaims(r.Context(), filter)
	if err != nil {
		config.ErrorStatus("failed to get claims", resolution.StatusFor(err), w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ClaimsByUserIDHandler returns all claims filed by the given user
func (c Claim) ClaimsByUserIDHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v", Limit|10))
		Limit = 10
	}
	Page = getPage(Page, r)

	dbResp, err := c.Engine.ListClaims(r.Context(), resolution.ClaimFilter{
		ClaimantID: userID,
		Limit:      Limit,
		Page:       Page,
	})
	if err != nil {
		config.ErrorStatus("failed to get claims by user ID", resolution.StatusFor(err), w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ClaimByIDHandler returns a claim by ID
func (c Claim) ClaimByIDHandler(w http.ResponseWriter, r *http.Request) {
	claimID := mux.Vars(r)["claim_id"]

	zap.S().Debugf("claim_id: %v", claimID)

	dbResp, err := c.Engine.GetClaim(r.Context(), claimID)
	if err != nil {
		config.ErrorStatus("failed to get claim by ID", resolution.StatusFor(err), w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ClaimDecisionHandler applies a staff verdict to a submitted claim. Approve
// and reject are terminal; open-verification moves the claim into a
// verification conversation. Of two concurrent decisions exactly one wins.
func (c Claim) ClaimDecisionHandler(w http.ResponseWriter, r *http.Request) {
	claimID := mux.Vars(r)["claim_id"]

	var req claimDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode decision", http.StatusBadRequest, w, err)
		return
	}

	decision, err := resolution.ParseDecision(req.Decision)
	if err != nil {
		config.ErrorStatus("invalid decision", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := c.Engine.DecideClaim(r.Context(), claimID, decision, req.Reason, req.ReviewerID)
	if err != nil {
		config.ErrorStatus("failed to decide claim", resolution.StatusFor(err), w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ClaimCheckoutSessionHandler creates a Stripe checkout session for the
// courier return of an approved claim's item
func (c Claim) ClaimCheckoutSessionHandler(w http.ResponseWriter, r *http.Request) {
	claimID := mux.Vars(r)["claim_id"]

	claim, err := c.Engine.GetClaim(r.Context(), claimID)
	if err != nil {
		config.ErrorStatus("failed to get claim by ID", resolution.StatusFor(err), w, err)
		return
	}
	if claim.Status != models.ClaimStatusApproved {
		config.ErrorStatus("claim is not approved", http.StatusConflict, w,
			fmt.Errorf("claim %s has status %s", claimID, claim.Status))
		return
	}

	item, err := c.Engine.GetItem(r.Context(), claim.ItemID)
	if err != nil {
		config.ErrorStatus("failed to get claimed item", resolution.StatusFor(err), w, err)
		return
	}

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String("usd"),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Courier return: " + item.Title),
					},
					UnitAmount: stripe.Int64(courierReturnFee),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(baseURL + "/api/v1/success?claim_id=" + claimID),
		CancelURL:         stripe.String(baseURL + "/api/v1/cancel?claim_id=" + claimID),
		ClientReferenceID: stripe.String(claimID),
	}

	s, err := session.New(params)
	if err != nil {
		config.ErrorStatus("failed to create checkout session", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(map[string]string{"sessionId": s.ID, "url": s.URL})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// DeliverySuccessHandler lands the Stripe success redirect and forwards the
// rider to the claim page on the public site
func (c Claim) DeliverySuccessHandler(w http.ResponseWriter, r *http.Request) {
	claimID := r.URL.Query().Get("claim_id")
	zap.S().Infof("courier return checkout completed for claim %v", claimID)
	http.Redirect(w, r, publicWebURL()+"/claims/"+claimID+"?delivery=paid", http.StatusSeeOther)
}

// DeliveryCancelHandler lands the Stripe cancel redirect
func (c Claim) DeliveryCancelHandler(w http.ResponseWriter, r *http.Request) {
	claimID := r.URL.Query().Get("claim_id")
	zap.S().Infof("courier return checkout cancelled for claim %v", claimID)
	http.Redirect(w, r, publicWebURL()+"/claims/"+claimID+"?delivery=cancelled", http.StatusSeeOther)
}

func publicWebURL() string {
	if url := os.Getenv("PUBLIC_WEB_BASE_URL"); url != "" {
		return url
	}
	return "https://www.metrofound.example"
}
