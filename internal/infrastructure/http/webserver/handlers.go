package webserver

import (
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Sachin-dot-py/Grocify/internal/application/additem"
	"github.com/Sachin-dot-py/Grocify/internal/domain/capture"
	domain "github.com/Sachin-dot-py/Grocify/internal/domain/inventory"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/api"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/session"
	apperrors "github.com/Sachin-dot-py/Grocify/pkg/errors"
)

// itemView is an inventory item decorated with its freshness bucket for
// rendering.
type itemView struct {
	domain.Item
	DaysLeft int
	Label    string
	Severity string
	Error    string
}

func newItemView(item domain.Item, now time.Time) itemView {
	status := item.Status(now)
	return itemView{
		Item:     item,
		DaysLeft: int(math.Ceil(domain.DaysUntil(item.ExpiryTime(), now))),
		Label:    status.Label(),
		Severity: status.Severity(),
	}
}

// sortItemViews orders items most urgent first, ties broken by expiry date.
func sortItemViews(views []itemView, now time.Time) {
	sort.SliceStable(views, func(i, j int) bool {
		wi, wj := views[i].Status(now).Weight(), views[j].Status(now).Weight()
		if wi != wj {
			return wi > wj
		}
		return views[i].ExpiryTime().Before(views[j].ExpiryTime())
	})
}

// errorMessage extracts a user-facing message from a classified error.
func errorMessage(err error) string {
	if appErr, ok := err.(*apperrors.AppError); ok {
		if appErr.Code == apperrors.CodeNetworkError {
			return "Could not reach the server. Please check your connection and try again."
		}
		return appErr.Message
	}
	return "Something went wrong. Please try again."
}

// dietaryOptions are the restrictions the profile page offers.
var dietaryOptions = []string{
	"vegetarian", "vegan", "gluten-free", "dairy-free", "nut-free", "halal", "kosher",
}

// Page handlers

// handleHome resolves the stored token before deciding where the landing
// page goes: a session with no token renders the landing page without any
// backend call, one with a live (or refreshable) token goes straight to the
// inventory, and one whose refresh fails is left signed out.
func (s *WebServer) handleHome(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	state, err := s.control.Resolve(r.Context(), sess)
	if err != nil {
		s.logger.Warn("Identity lookup failed on landing page", zap.Error(err))
	}
	if state == session.Authenticated {
		http.Redirect(w, r, "/inventory", http.StatusSeeOther)
		return
	}
	s.renderTemplate(w, "home", map[string]interface{}{
		"Title": "Grocify",
	})
}

func (s *WebServer) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if sess != nil && sess.Authenticated() {
		http.Redirect(w, r, "/inventory", http.StatusSeeOther)
		return
	}
	s.renderTemplate(w, "login", map[string]interface{}{
		"Title":    "Sign In - Grocify",
		"Redirect": safeRedirect(r.URL.Query().Get("redirect")),
	})
}

// handleLogin serves both modes of the toggled auth form. A signup that
// fails never falls through to a login attempt.
func (s *WebServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	sess := sessionFromContext(r.Context())
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	mode := r.FormValue("mode")

	var err error
	if mode == "signup" {
		err = s.authSvc.Signup(r.Context(), sess, username, password)
	} else {
		err = s.authSvc.Login(r.Context(), sess, username, password)
	}
	if err != nil {
		s.logger.Info("Auth attempt failed",
			zap.String("mode", mode),
			zap.String("username", username),
		)
		w.WriteHeader(statusForForm(err))
		s.renderTemplate(w, "partials/auth-error", map[string]interface{}{
			"Error": errorMessage(err),
			"Mode":  mode,
		})
		return
	}

	target := safeRedirect(r.FormValue("redirect"))
	if target == "" {
		target = "/inventory"
	}
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *WebServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if sess != nil {
		s.authSvc.Logout(r.Context(), sess)
		s.resetState(sess.ID)
	}
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *WebServer) handleInventoryPage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())

	items, err := s.inventorySvc.List(r.Context(), sess)
	if err != nil {
		s.renderTemplate(w, "inventory", map[string]interface{}{
			"Title":    "Inventory - Grocify",
			"Username": sess.Username,
			"Error":    errorMessage(err),
		})
		return
	}

	now := time.Now()
	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, newItemView(item, now))
	}
	sortItemViews(views, now)

	s.renderTemplate(w, "inventory", map[string]interface{}{
		"Title":    "Inventory - Grocify",
		"Username": sess.Username,
		"Items":    views,
	})
}

func (s *WebServer) handleAddItemPage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	s.renderTemplate(w, "add-item", map[string]interface{}{
		"Title":    "Add Item - Grocify",
		"Username": sess.Username,
	})
}

// handleRecipesPage starts a fresh recipes session: the transcript and the
// current recipe reset on every page load, and the first recipe generates
// automatically via the partial below.
func (s *WebServer) handleRecipesPage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	s.resetState(sess.ID)
	s.renderTemplate(w, "recipes", map[string]interface{}{
		"Title":    "Recipes - Grocify",
		"Username": sess.Username,
	})
}

func (s *WebServer) handleProfilePage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())

	data := map[string]interface{}{
		"Title":    "Profile - Grocify",
		"Username": sess.Username,
		"Options":  dietaryOptions,
	}
	info, err := s.authSvc.Preferences(r.Context(), sess)
	if err != nil {
		data["Error"] = errorMessage(err)
	} else {
		data["DietaryRestrictions"] = info.DietaryRestrictions
	}
	s.renderTemplate(w, "profile", data)
}

func (s *WebServer) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	sess := sessionFromContext(r.Context())

	restrictions := r.Form["dietary_restrictions"]
	if err := s.authSvc.UpdatePreferences(r.Context(), sess, restrictions); err != nil {
		s.renderTemplate(w, "partials/profile-saved", map[string]interface{}{
			"Error": errorMessage(err),
		})
		return
	}
	s.renderTemplate(w, "partials/profile-saved", map[string]interface{}{
		"Saved": true,
	})
}

// Inventory partials

// handleHTMXDeleteItem removes a row on success. On failure the row is
// re-rendered from the values the client echoed back, so the item visibly
// comes back with the error attached.
func (s *WebServer) handleHTMXDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	sess := sessionFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.inventorySvc.Delete(r.Context(), sess, id); err != nil {
		s.logger.Warn("Delete failed after retries", zap.String("item_id", id), zap.Error(err))
		view := newItemView(itemFromForm(r, id), time.Now())
		view.Error = "Could not delete this item. Please try again."
		s.renderTemplate(w, "partials/item-row", view)
		return
	}
	// Empty body: hx-swap outerHTML removes the row.
	w.WriteHeader(http.StatusOK)
}

// handleHTMXAdjustQuantity persists the change and renders the row from the
// backend's confirmed item, never from the local delta.
func (s *WebServer) handleHTMXAdjustQuantity(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	sess := sessionFromContext(r.Context())
	id := chi.URLParam(r, "id")
	item := itemFromForm(r, id)
	delta, _ := strconv.Atoi(r.FormValue("delta"))

	updated, err := s.inventorySvc.AdjustQuantity(r.Context(), sess, item, delta)
	if err != nil {
		// Validation failures show inline too; the row itself is unchanged.
		view := newItemView(item, time.Now())
		view.Error = errorMessage(err)
		s.renderTemplate(w, "partials/item-row", view)
		return
	}
	s.renderTemplate(w, "partials/item-row", newItemView(*updated, time.Now()))
}

// itemFromForm rebuilds the item a row partial echoed back in hidden
// fields.
func itemFromForm(r *http.Request, id string) domain.Item {
	quantity, _ := strconv.Atoi(r.FormValue("quantity"))
	return domain.Item{
		ID:         id,
		Name:       r.FormValue("name"),
		Image:      r.FormValue("image"),
		ExpiryDate: r.FormValue("expiry_date"),
		Quantity:   quantity,
		Unit:       r.FormValue("unit"),
	}
}

// Add-item partials

func (s *WebServer) handleHTMXCaptureBarcode(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	code := strings.TrimSpace(r.FormValue("barcode"))
	if code == "" {
		s.renderTemplate(w, "partials/capture-error", map[string]interface{}{
			"Error": "No barcode detected. Try scanning again.",
		})
		return
	}
	s.resolveCapture(w, r, capture.Static(capture.Barcode{Code: code}))
}

func (s *WebServer) handleHTMXCaptureImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	data := r.FormValue("image")
	if data == "" {
		s.renderTemplate(w, "partials/capture-error", map[string]interface{}{
			"Error": "No photo captured. Try taking the picture again.",
		})
		return
	}
	s.resolveCapture(w, r, capture.Static(capture.Image{Data: data}))
}

// resolveCapture runs identification and renders the pre-filled item form.
// An unrecognized barcode keeps the capture flow on screen for another
// attempt rather than dead-ending.
func (s *WebServer) resolveCapture(w http.ResponseWriter, r *http.Request, src capture.Source) {
	sess := sessionFromContext(r.Context())

	details, err := s.addItemSvc.Identify(r.Context(), sess, src)
	if err != nil {
		msg := errorMessage(err)
		if apperrors.Is(err, apperrors.CodeNotFound) {
			msg = "We couldn't find that product. Scan again or enter the details manually."
		}
		s.renderTemplate(w, "partials/capture-error", map[string]interface{}{
			"Error": msg,
		})
		return
	}
	s.renderTemplate(w, "partials/item-details", details)
}

func (s *WebServer) handleHTMXAddItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	sess := sessionFromContext(r.Context())
	form := additem.Form{
		Barcode:    r.FormValue("barcode"),
		Name:       strings.TrimSpace(r.FormValue("name")),
		Image:      r.FormValue("image"),
		ExpiryDate: strings.TrimSpace(r.FormValue("expiry_date")),
	}

	if _, err := s.addItemSvc.Add(r.Context(), sess, form); err != nil {
		// Inline error; the form and its values stay in place.
		s.renderTemplate(w, "partials/form-error", map[string]interface{}{
			"Error": errorMessage(err),
		})
		return
	}

	w.Header().Set("HX-Redirect", "/inventory")
	w.WriteHeader(http.StatusOK)
}

// Recipes partials

func (s *WebServer) handleHTMXGenerateRecipe(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())

	rec, err := s.recipesSvc.Generate(r.Context(), sess)
	if err != nil {
		s.renderRecipeError(w, err)
		return
	}

	st := s.state(sess.ID)
	st.recipe = rec
	s.renderTemplate(w, "partials/recipe", rec)
}

func (s *WebServer) handleHTMXCustomRecipe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	sess := sessionFromContext(r.Context())

	constraints := api.CustomRecipeConstraints{
		DietaryRestrictions: r.Form["dietary_restrictions"],
		Cuisine:             strings.TrimSpace(r.FormValue("cuisine")),
		SpecialRequests:     strings.TrimSpace(r.FormValue("special_requests")),
	}

	rec, err := s.recipesSvc.GenerateCustom(r.Context(), sess, constraints)
	if err != nil {
		s.renderRecipeError(w, err)
		return
	}

	st := s.state(sess.ID)
	st.recipe = rec
	s.renderTemplate(w, "partials/recipe", rec)
}

func (s *WebServer) renderRecipeError(w http.ResponseWriter, err error) {
	if apperrors.Is(err, apperrors.CodeNoIngredients) {
		s.renderTemplate(w, "partials/recipe-empty", nil)
		return
	}
	s.renderTemplate(w, "partials/recipe-error", map[string]interface{}{
		"Error": errorMessage(err),
	})
}

// handleHTMXChat renders the user's bubble and exactly one assistant bubble
// per turn. A failed call still gets the fallback reply so the
// conversation never stalls silently.
func (s *WebServer) handleHTMXChat(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	sess := sessionFromContext(r.Context())
	message := strings.TrimSpace(r.FormValue("message"))
	if message == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	st := s.state(sess.ID)
	reply, err := s.recipesSvc.Chat(r.Context(), sess, st.transcript, st.recipe, message)
	if err != nil {
		s.logger.Warn("Chat turn failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
	s.renderTemplate(w, "partials/chat-turn", map[string]interface{}{
		"UserMessage":      message,
		"AssistantMessage": reply.Content,
	})
}

// Helpers

// safeRedirect only allows local paths, never absolute URLs.
func safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return ""
	}
	return target
}

func statusForForm(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.CodeValidationFailed, apperrors.CodeBadRequest:
		return http.StatusBadRequest
	case apperrors.CodeNetworkError, apperrors.CodeServerError:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}
