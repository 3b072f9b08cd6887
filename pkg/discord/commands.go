package discord

import (
	"fmt"
	"log"
	"strings"

	"companion/pkg/affection"
	"companion/pkg/bot"
	"companion/pkg/cafe"

	"github.com/bwmarrin/discordgo"
)

// SlashCommands defines all available slash commands
var SlashCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "status",
		Description: "See how close the two of you are",
	},
	{
		Name:        "cafe",
		Description: "Start or end a café date",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionBoolean,
			Name:        "on",
			Description: "true to go on the date, false to head home",
			Required:    true,
		}},
	},
	{
		Name:        "hands",
		Description: "Hold hands, or let go",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionBoolean,
			Name:        "on",
			Description: "true to hold hands",
			Required:    true,
		}},
	},
	{
		Name:        "menu",
		Description: "Show the café menu and your wallet",
	},
	{
		Name:        "buy",
		Description: "Order something at the café",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "item",
			Description: "What to order",
			Required:    true,
			Choices:     menuChoices(),
		}},
	},
	{
		Name:        "pay",
		Description: "Pay for your order",
	},
	{
		Name:        "reset",
		Description: "Forget this conversation and start over",
	},
}

// SlashCommandHandlers maps command names to their handler functions
var SlashCommandHandlers = map[string]func(h *Handler, s Session, i *discordgo.InteractionCreate){
	"status": handleStatusCommand,
	"cafe":   handleCafeCommand,
	"hands":  handleHandsCommand,
	"menu":   handleMenuCommand,
	"buy":    handleBuyCommand,
	"pay":    handlePayCommand,
	"reset":  handleResetCommand,
}

func menuChoices() []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(cafe.Menu))
	for _, item := range cafe.Menu {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  fmt.Sprintf("%s ($%.0f)", item.Name, item.Price),
			Value: item.Name,
		})
	}
	return choices
}

func respond(s Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("Error responding to interaction: %v", err)
	}
}

// getUserFromInteraction extracts the user ID from an interaction in either
// a guild (Member) or DM (User) context.
func getUserFromInteraction(i *discordgo.InteractionCreate) (string, error) {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID, nil
	}
	if i.User != nil {
		return i.User.ID, nil
	}
	return "", fmt.Errorf("could not determine user from interaction")
}

// chatForInteraction returns the caller's conversation, starting one if
// needed.
func (h *Handler) chatForInteraction(s Session, i *discordgo.InteractionCreate) (*chat, bool) {
	userID, err := getUserFromInteraction(i)
	if err != nil {
		log.Printf("Error: %v", err)
		return nil, false
	}
	return h.chatFor(s, userID, i.ChannelID), true
}

func optionValue(i *discordgo.InteractionCreate, name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name {
			return opt
		}
	}
	return nil
}

func handleStatusCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	c, ok := h.chatForInteraction(s, i)
	if !ok {
		return
	}
	st, err := c.conv.State()
	if err != nil {
		respond(s, i, "Something went wrong, try again?")
		return
	}
	respond(s, i, formatStatus(c.conv.Character(), st))
}

func formatStatus(c affection.Character, st bot.StateUpdate) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s** · %s (%d/100)\n", c.Profile().DisplayName, st.RelationshipStage, st.AffectionScore)

	switch {
	case st.IsCafeDateActive:
		sb.WriteString("☕ On a café date\n")
	case st.IsCafeDateUnlocked:
		sb.WriteString("☕ Café date available (`/cafe on:true`)\n")
	default:
		sb.WriteString("🔒 Café date locked\n")
	}

	switch {
	case st.HoldingHands:
		sb.WriteString("🤝 Holding hands\n")
	case st.IsHandHoldingOfferable:
		sb.WriteString("🤝 Hand holding available (`/hands on:true`)\n")
	default:
		sb.WriteString("🔒 Hand holding locked\n")
	}

	if st.ActiveMilestone != nil {
		fmt.Fprintf(&sb, "💕 %s\n", st.ActiveMilestone.Label)
	}
	return strings.TrimSpace(sb.String())
}

func handleCafeCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	c, ok := h.chatForInteraction(s, i)
	if !ok {
		return
	}
	opt := optionValue(i, "on")
	on := opt != nil && opt.BoolValue()

	if err := c.conv.SetCafeDate(on); err != nil {
		respond(s, i, "Not yet... "+err.Error()+".")
		return
	}
	if on {
		respond(s, i, "☕ You head to the café together. Try `/menu`.")
	} else {
		respond(s, i, "You leave the café.")
	}
}

func handleHandsCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	c, ok := h.chatForInteraction(s, i)
	if !ok {
		return
	}
	opt := optionValue(i, "on")
	on := opt != nil && opt.BoolValue()

	if err := c.conv.SetHoldingHands(on); err != nil {
		respond(s, i, "Not yet... "+err.Error()+".")
		return
	}
	if on {
		respond(s, i, "🤝 You're holding hands.")
	} else {
		respond(s, i, "You let go.")
	}
}

func handleMenuCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	c, ok := h.chatForInteraction(s, i)
	if !ok {
		return
	}
	view, err := c.conv.Ledger()
	if err != nil {
		respond(s, i, "Something went wrong, try again?")
		return
	}
	respond(s, i, formatMenu(view))
}

func formatMenu(view cafe.View) string {
	selected := make(map[string]bool, len(view.Selected))
	for _, item := range view.Selected {
		selected[item.Name] = true
	}

	var sb strings.Builder
	sb.WriteString("**☕ Café Menu**\n")
	bySlot := cafe.MenuBySlot()
	for _, slot := range cafe.Slots {
		fmt.Fprintf(&sb, "\n**%s**\n", slotTitle(slot))
		for _, item := range bySlot[slot] {
			mark := ""
			switch {
			case selected[item.Name]:
				mark = " ✅"
			case !view.Affordable[item.Name]:
				mark = " ~~can't afford~~"
			}
			fmt.Fprintf(&sb, "• %s, $%.2f%s\n", item.Name, item.Price, mark)
		}
	}
	fmt.Fprintf(&sb, "\nWallet: $%.2f (available $%.2f)", view.Currency, view.AvailableBalance)
	return sb.String()
}

func slotTitle(slot cafe.Slot) string {
	name := string(slot)
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:] + "s"
}

func handleBuyCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	c, ok := h.chatForInteraction(s, i)
	if !ok {
		return
	}
	opt := optionValue(i, "item")
	if opt == nil {
		respond(s, i, "Pick something from the menu first.")
		return
	}
	name := opt.StringValue()

	if err := c.conv.Purchase(name); err != nil {
		respond(s, i, "Couldn't order that: "+err.Error()+".")
		return
	}
	respond(s, i, fmt.Sprintf("Ordered %s.", name))
}

func handlePayCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	c, ok := h.chatForInteraction(s, i)
	if !ok {
		return
	}
	receipt, err := c.conv.Checkout()
	if err != nil {
		respond(s, i, "Couldn't pay: "+err.Error()+".")
		return
	}
	if len(receipt.Items) == 0 {
		respond(s, i, "Nothing to pay for yet.")
		return
	}
	respond(s, i, fmt.Sprintf("Paid $%.2f. $%.2f left.", receipt.Total, receipt.Remaining))
}

func handleResetCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	userID, err := getUserFromInteraction(i)
	if err != nil {
		log.Printf("Error: Could not determine user ID for reset command")
		return
	}
	if h.Reset(userID) {
		respond(s, i, "Conversation reset! Starting fresh. 💭✨")
		return
	}
	respond(s, i, "There was nothing to reset.")
}

// InteractionCreate handles all slash command interactions
func (h *Handler) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.HandleInteraction(&DiscordSession{s}, i)
}

func (h *Handler) HandleInteraction(s Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	commandName := i.ApplicationCommandData().Name
	if handler, ok := SlashCommandHandlers[commandName]; ok {
		handler(h, s, i)
	} else {
		log.Printf("Unknown slash command: %s", commandName)
	}
}

// RegisterSlashCommands registers all slash commands with Discord
func RegisterSlashCommands(s *discordgo.Session, guildID string) ([]*discordgo.ApplicationCommand, error) {
	log.Println("Registering slash commands...")

	registeredCommands := make([]*discordgo.ApplicationCommand, len(SlashCommands))
	for i, cmd := range SlashCommands {
		registeredCmd, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, cmd)
		if err != nil {
			log.Printf("Cannot create '%s' command: %v", cmd.Name, err)
			return nil, err
		}
		registeredCommands[i] = registeredCmd
		log.Printf("Registered command: %s", cmd.Name)
	}

	return registeredCommands, nil
}

// UnregisterSlashCommands removes all registered slash commands
func UnregisterSlashCommands(s *discordgo.Session, guildID string, commands []*discordgo.ApplicationCommand) error {
	log.Println("Unregistering slash commands...")

	for _, cmd := range commands {
		if err := s.ApplicationCommandDelete(s.State.User.ID, guildID, cmd.ID); err != nil {
			log.Printf("Cannot delete '%s' command: %v", cmd.Name, err)
			return err
		}
	}
	return nil
}
