package commands

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"

	"github.com/hadef-dev/pricewatch/pricewatch"
	"github.com/hadef-dev/pricewatch/pricewatch/database/models"
	"github.com/hadef-dev/pricewatch/pricewatch/utils"
)

var Products = discord.SlashCommandCreate{
	Name:        "products",
	Description: "📋 List your tracked products",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "query",
			Description: "Filter by product title",
			Required:    false,
		},
	},
}

const productsPerPage = 10

func ProductsHandler(b *pricewatch.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		query := strings.TrimSpace(e.SlashCommandInteractionData().String("query"))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		products, err := b.ProductRepository.GetByUser(ctx, e.User().ID.String())
		if err != nil {
			return utils.EH.CreateErrorEmbed(e, "Failed to load your products. Please try again later.")
		}
		if query != "" {
			products = b.SearchService.Search(products, query)
		}

		if len(products) == 0 {
			if query != "" {
				return utils.EH.CreateInfoEmbed(e,
					fmt.Sprintf("No tracked products match **%s**.", query))
			}
			return utils.EH.CreateInfoEmbed(e,
				"You aren't tracking any products yet. Add one with `/track`.")
		}

		totalPages := int(math.Ceil(float64(len(products)) / float64(productsPerPage)))

		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				start := page * productsPerPage
				end := start + productsPerPage
				if end > len(products) {
					end = len(products)
				}

				embed.
					SetTitle("📋 Tracked Products").
					SetDescription(buildProductList(products[start:end], start)).
					SetColor(utils.InfoColor).
					SetFooter(fmt.Sprintf("Page %d/%d • Total: %d", page+1, totalPages, len(products)), "")
			},
			Pages:      totalPages,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}

func buildProductList(products []*models.Product, offset int) string {
	var description strings.Builder
	for i, product := range products {
		description.WriteString(fmt.Sprintf("**%d.** [%s](%s)\n",
			offset+i+1,
			utils.TruncateString(product.Title, 60),
			product.ProductURL))
		description.WriteString(fmt.Sprintf("   💵 %s • 🆔 `%s`",
			utils.FormatPrice(product.CurrentPrice, product.Currency),
			product.ProductID))
		if product.LastChecked != nil {
			description.WriteString(fmt.Sprintf(" • checked <t:%d:R>", product.LastChecked.Unix()))
		}
		description.WriteString("\n")
	}
	description.WriteString("\nRemove one with `/untrack`, see its history with `/history`.")
	return description.String()
}
