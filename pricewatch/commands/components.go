package commands

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/handler"

	"github.com/hadef-dev/pricewatch/pricewatch"
	"github.com/hadef-dev/pricewatch/pricewatch/utils"
)

// ContinueHandler handles the "keep monitoring" button on update reminders.
func ContinueHandler(b *pricewatch.Bot) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := b.Engagement.RespondContinue(ctx, e.User().ID.String()); err != nil {
			return utils.EH.CreateEphemeralError(e, "Failed to confirm. Please try again.")
		}
		return utils.EH.CreateEphemeralSuccess(e, "Got it, I'll keep monitoring your products.")
	}
}

// AddProductHandler nudges the user toward /track; slash command options can't
// be pre-filled from a button.
func AddProductHandler(b *pricewatch.Bot) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		return utils.EH.CreateEphemeralSuccess(e, "Use `/track <link>` to add a product.")
	}
}

// ManageProductsHandler points the user to the listing command.
func ManageProductsHandler(b *pricewatch.Bot) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		return utils.EH.CreateEphemeralSuccess(e, "Use `/products` to review and `/untrack` to remove products.")
	}
}

// ViewHistoryHandler points the user to the history command.
func ViewHistoryHandler(b *pricewatch.Bot) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		return utils.EH.CreateEphemeralSuccess(e, "Use `/history <product>` to see recorded price changes.")
	}
}
