package engine

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/triagebot/internal/store"
)

// Category keys the classifier may produce. The registry below is the single
// source of truth: the classifier prompt, the validator, and the dispatcher
// all derive from it.
const (
	CategoryCantFind     = "cant_find_product_or_drop_or_dead_drop"
	CategoryHowToPay     = "dont_know_how_to_pay"
	CategoryRestock      = "restock_request_for_product_or_location"
	CategoryAvailability = "is_product_still_available"
	CategoryArrivalTime  = "what_is_usual_product_arrival_time"
	CategoryThanks       = "user_says_thanks"
	CategoryResolved     = "issue_resolved_by_user"
	CategoryOK           = "ok"
	CategoryVoice        = "voice_message"
	CategoryOther        = "other"
)

// HandlerFunc emits the templated replies for one category and usually
// closes the ticket. Escalation is not a handler: the engine resolves it
// directly from the entry flags so the registry stays free of cycles.
type HandlerFunc func(ctx context.Context, env *Env) error

// Env carries everything a template handler may touch.
type Env struct {
	Repo     store.Repository
	Platform Platform
	Ticket   *store.TicketWithMessages
	Lang     string
}

// Entry describes how one category is acted on. Exactly one of Handler or
// Escalate is set, except proof-gathering categories which carry a handler
// AND escalate when media is attached.
type Entry struct {
	Escalate bool
	Proof    bool
	Handler  HandlerFunc
}

// Registry maps category keys to their actions. Built once at startup and
// validated before the engine runs.
type Registry struct {
	order   []string
	entries map[string]Entry
}

// NewRegistry builds the production dispatch table.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]Entry)}
	r.add(CategoryCantFind, Entry{Proof: true, Handler: handleLostDrop})
	r.add(CategoryHowToPay, Entry{Handler: handlePaymentGuide})
	r.add(CategoryRestock, Entry{Handler: handleRestock})
	r.add(CategoryAvailability, Entry{Handler: handleAvailability})
	r.add(CategoryArrivalTime, Entry{Handler: handleArrivalTime})
	r.add(CategoryThanks, Entry{Handler: handleThanks})
	r.add(CategoryResolved, Entry{Handler: handleThanks})
	r.add(CategoryOK, Entry{Handler: handleThanks})
	r.add(CategoryVoice, Entry{Handler: handleVoiceMessage})
	r.add("wrong_drop_info", Entry{Escalate: true})
	r.add("payment_sent_but_no_drop", Entry{Escalate: true})
	r.add("less_product_received", Entry{Escalate: true})
	r.add("kladmen_or_packaging_complaint", Entry{Escalate: true})
	r.add("bot_banned_or_deleted", Entry{Escalate: true})
	r.add("opinion_or_info_question", Entry{Escalate: true})
	r.add("closest_drop_to_x", Entry{Escalate: true})
	r.add(CategoryOther, Entry{Escalate: true})
	return r
}

func (r *Registry) add(key string, e Entry) {
	r.order = append(r.order, key)
	r.entries[key] = e
}

// Lookup returns the entry for a category key.
func (r *Registry) Lookup(key string) (Entry, bool) {
	e, ok := r.entries[key]
	return e, ok
}

// Categories returns the keys in declaration order, for the classifier
// prompt.
func (r *Registry) Categories() []string {
	return append([]string(nil), r.order...)
}

// Suppressible reports whether a repeat of this category gets silently
// closed: template-only replies loop otherwise, while escalation and
// proof-gathering categories must always act.
func (r *Registry) Suppressible(key string) bool {
	e, ok := r.entries[key]
	return ok && !e.Escalate && !e.Proof
}

// Validate rejects malformed tables at startup: every entry needs exactly
// one action, and the "other" fallback must exist and escalate.
func (r *Registry) Validate() error {
	for key, e := range r.entries {
		if e.Escalate && e.Handler != nil {
			return fmt.Errorf("category %s: both escalate and handler set", key)
		}
		if !e.Escalate && e.Handler == nil {
			return fmt.Errorf("category %s: no action", key)
		}
	}
	fallback, ok := r.entries[CategoryOther]
	if !ok || !fallback.Escalate {
		return fmt.Errorf("category %s must exist and escalate", CategoryOther)
	}
	return nil
}
