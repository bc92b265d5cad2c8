package commands

import (
	"github.com/disgoorg/disgo/discord"
)

var Commands = []discord.ApplicationCommandCreate{
	Start,
	Track,
	Products,
	Untrack,
	History,
	Country,
	Help,
	Version,
}
