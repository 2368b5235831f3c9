package engine

import (
	"context"
	"math/rand"
	"time"
)

// Template handlers. Each emits its script with human-looking pauses and
// closes the ticket; the lost-drop handler leaves its ticket open because
// the re-engage subroutine keeps listening for proof.

// Payment guide screenshots shipped with the deployment.
var paymentImages = []string{
	"data/card_payment_1.jpg",
	"data/card_payment_2.jpg",
	"data/narvesen.jpg",
}

func handleLostDrop(ctx context.Context, env *Env) error {
	return sendScript(ctx, env, pickScript(lostDropScripts, env.Lang))
}

func handleVoiceMessage(ctx context.Context, env *Env) error {
	if err := sendScript(ctx, env, pickScript(voiceScripts, env.Lang)); err != nil {
		return err
	}
	return env.Repo.CloseTicket(ctx, env.Ticket.ID)
}

func handlePaymentGuide(ctx context.Context, env *Env) error {
	for _, img := range paymentImages {
		if err := env.Platform.SendPhotoFile(ctx, env.Ticket.UserID, img, ""); err != nil {
			return err
		}
	}
	if err := sendScript(ctx, env, pickScript(paymentGuides, env.Lang)); err != nil {
		return err
	}
	return env.Repo.CloseTicket(ctx, env.Ticket.ID)
}

func handleRestock(ctx context.Context, env *Env) error {
	if err := sendScript(ctx, env, pickScript(restockReplies, env.Lang)); err != nil {
		return err
	}
	return env.Repo.CloseTicket(ctx, env.Ticket.ID)
}

func handleAvailability(ctx context.Context, env *Env) error {
	if err := sendScript(ctx, env, pickScript(availabilityReplies, env.Lang)); err != nil {
		return err
	}
	return env.Repo.CloseTicket(ctx, env.Ticket.ID)
}

func handleArrivalTime(ctx context.Context, env *Env) error {
	if err := sendScript(ctx, env, pickScript(arrivalReplies, env.Lang)); err != nil {
		return err
	}
	return env.Repo.CloseTicket(ctx, env.Ticket.ID)
}

func handleThanks(ctx context.Context, env *Env) error {
	if err := env.Platform.SendText(ctx, env.Ticket.UserID, "👍"); err != nil {
		return err
	}
	return env.Repo.CloseTicket(ctx, env.Ticket.ID)
}

// sendScript delivers a multi-message script with 4–6 s pauses so the reply
// doesn't read like a machine gun.
func sendScript(ctx context.Context, env *Env, lines []string) error {
	for i, line := range lines {
		if i > 0 {
			delay := 4*time.Second + time.Duration(rand.Intn(2000))*time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := env.Platform.SendText(ctx, env.Ticket.UserID, line); err != nil {
			return err
		}
	}
	return nil
}
