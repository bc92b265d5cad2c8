// Package notifications delivers user-facing messages over Discord DMs.
// Delivery is strictly best-effort: every failure is logged and swallowed so
// a broken DM channel can never stall the monitoring engine.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"

	"github.com/hadef-dev/pricewatch/pricewatch/monitor"
	"github.com/hadef-dev/pricewatch/pricewatch/services"
	"github.com/hadef-dev/pricewatch/pricewatch/utils"
)

const (
	colorDrop     = 0x57F287
	colorIncrease = 0xED4245
	colorNeutral  = 0x2b2d31
)

// Component custom IDs handled by the command router.
const (
	ComponentContinue = "/update-continue"
	ComponentAdd      = "/add-product"
	ComponentManage   = "/manage-products"
	ComponentHistory  = "/view-history"
)

type Dispatcher struct {
	mu     sync.RWMutex
	client bot.Client
	images services.ImageStore
}

// NewDispatcher creates a dispatcher. The image store is optional; without
// it the marketplace image URL is used as-is.
func NewDispatcher(client bot.Client, images services.ImageStore) *Dispatcher {
	return &Dispatcher{client: client, images: images}
}

func (d *Dispatcher) SetClient(client bot.Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.client = client
}

func (d *Dispatcher) restClient() bot.Client {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.client
}

// NotifyPriceChange sends the price-change DM for one product.
func (d *Dispatcher) NotifyPriceChange(ctx context.Context, change *monitor.PriceChange) {
	client := d.restClient()
	if client == nil {
		slog.Warn("Notification dropped, no client attached",
			slog.String("type", "sys"),
			slog.String("user_id", change.UserID))
		return
	}

	title := utils.TruncateString(change.Title, 80)

	heading := "📈 Price Increase"
	color := colorIncrease
	if change.Delta < 0 {
		heading = "📉 Price Drop!"
		color = colorDrop
	}

	description := fmt.Sprintf("**%s**\n\n"+
		"💵 **Old:** $%.2f\n"+
		"💵 **New:** $%.2f\n"+
		"📊 **Change:** $%+.2f (%+.1f%%)\n",
		title, change.OldPrice, change.NewPrice, change.Delta, change.Percent)
	if change.Delta < 0 {
		description += fmt.Sprintf("💰 **You Save:** $%.2f\n", math.Abs(change.Delta))
	}

	embed := discord.NewEmbedBuilder().
		SetTitle(heading).
		SetDescription(description).
		SetColor(color)

	if change.ImageURL != "" {
		embed.SetImage(d.imageFor(ctx, change.ProductID, change.ImageURL))
	}

	message := discord.MessageCreate{
		Embeds: []discord.Embed{embed.Build()},
		Components: []discord.ContainerComponent{
			discord.NewActionRow(
				discord.NewLinkButton("🛒 Buy Now", change.AffiliateLink),
				discord.NewSecondaryButton("📊 View History", ComponentHistory),
			),
		},
	}

	d.sendDM(change.UserID, message, "price_change")
}

// NotifyUpdateReminder asks a user whether they still want their tracked
// products monitored.
func (d *Dispatcher) NotifyUpdateReminder(ctx context.Context, userID string, productCount int, window time.Duration) {
	days := int(window.Hours() / 24)

	embed := discord.NewEmbedBuilder().
		SetTitle("🔔 Product List Update").
		SetDescription(fmt.Sprintf(
			"You are currently monitoring **%d** product(s).\n\n"+
				"Would you like to:\n"+
				"• ✅ Continue monitoring current products\n"+
				"• 🗑️ Delete some products\n"+
				"• ➕ Add new products\n\n"+
				"⚠️ **Please respond within %d days**",
			productCount, days)).
		SetColor(colorNeutral)

	message := discord.MessageCreate{
		Embeds: []discord.Embed{embed.Build()},
		Components: []discord.ContainerComponent{
			discord.NewActionRow(
				discord.NewPrimaryButton("✅ Continue Monitoring", ComponentContinue),
				discord.NewSecondaryButton("➕ Add Products", ComponentAdd),
				discord.NewSecondaryButton("🗑️ Manage Products", ComponentManage),
			),
		},
	}

	d.sendDM(userID, message, "update_reminder")
}

// NotifyRemoval tells a user their tracked products were purged after the
// response deadline passed.
func (d *Dispatcher) NotifyRemoval(ctx context.Context, userID string) {
	embed := discord.NewEmbedBuilder().
		SetTitle("⚠️ Products Removed").
		SetDescription("Your monitored products have been removed due to no response.\n\n" +
			"You can start monitoring again anytime with `/start`.").
		SetColor(colorNeutral)

	d.sendDM(userID, discord.MessageCreate{Embeds: []discord.Embed{embed.Build()}}, "removal")
}

func (d *Dispatcher) imageFor(ctx context.Context, productID, sourceURL string) string {
	if d.images == nil {
		return sourceURL
	}
	mirrored, err := d.images.MirrorProductImage(ctx, productID, sourceURL)
	if err != nil {
		slog.Debug("Image mirror failed, using source URL",
			slog.String("type", "sys"),
			slog.String("product_id", productID),
			slog.Any("error", err))
		return sourceURL
	}
	return mirrored
}

func (d *Dispatcher) sendDM(userID string, message discord.MessageCreate, kind string) {
	client := d.restClient()
	if client == nil {
		return
	}

	id, err := snowflake.Parse(userID)
	if err != nil {
		slog.Error("Invalid user id for notification",
			slog.String("type", "error"),
			slog.String("user_id", userID),
			slog.Any("error", err))
		return
	}

	dmChannel, err := client.Rest().CreateDMChannel(id)
	if err != nil {
		slog.Error("Failed to create DM channel",
			slog.String("type", "error"),
			slog.String("user_id", userID),
			slog.String("kind", kind),
			slog.Any("error", err))
		return
	}

	if _, err := client.Rest().CreateMessage(dmChannel.ID(), message); err != nil {
		slog.Error("Failed to deliver notification",
			slog.String("type", "error"),
			slog.String("user_id", userID),
			slog.String("kind", kind),
			slog.Any("error", err))
	}
}
