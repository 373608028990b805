package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/zephyrtronium/casino/ledger"
	"github.com/zephyrtronium/casino/message"
	"github.com/zephyrtronium/casino/payday"
	"github.com/zephyrtronium/casino/settings"
)

// Register opens a bank account for the invoker and grants their first
// payday.
func Register(ctx context.Context, robo *Robot, call *Invocation) {
	m := call.Message
	err := robo.Ledger.Create(ctx, call.Channel.Group, m.Sender, m.Name, 0)
	switch {
	case err == nil:
		call.reply(ctx, message.Format("", "", "Account opened. Current balance: 0. Remember to periodically type %spayday to get free credits.", robo.Prefix))
		Payday(ctx, robo, call)
	case errors.Is(err, ledger.ErrAccountExists):
		call.reply(ctx, message.Format("", "", "You already have an account at the bank."))
	default:
		robo.Log.ErrorContext(ctx, "couldn't open account", slog.Any("err", err), slog.String("user", m.Sender))
		call.reply(ctx, message.Format("", "", "Something went wrong while opening your account. Try again. Sorry!"))
	}
}

// Balance shows the balance of a user, by default the invoker.
// If the invoker has no account, one is opened.
//   - user: ID of the user to show, or empty.
func Balance(ctx context.Context, robo *Robot, call *Invocation) {
	user := call.Args["user"]
	if user == "" || user == call.Message.Sender {
		n, err := robo.Ledger.Balance(call.Channel.Group, call.Message.Sender)
		if err != nil {
			Register(ctx, robo, call)
			return
		}
		call.reply(ctx, message.Format("", "", "Your balance is: %s", credits(n)))
		return
	}
	name := call.mentioned(robo, user)
	n, err := robo.Ledger.Balance(call.Channel.Group, user)
	if err != nil {
		call.reply(ctx, message.Format("", "", "%s does not have an account registered with the bank.", name))
		return
	}
	call.reply(ctx, message.Format("", "", "%s's balance is %s", name, credits(n)))
}

// Transfer moves credits from the invoker to another user.
//   - user: ID of the receiver.
//   - amount: Number of credits.
func Transfer(ctx context.Context, robo *Robot, call *Invocation) {
	group, from, to := call.Channel.Group, call.Message.Sender, call.Args["user"]
	n, ok := amount(call.Args["amount"])
	if !ok || n < 1 {
		call.reply(ctx, message.Format("", "", "You need to transfer at least 1 credit."))
		return
	}
	if _, ok := robo.Ledger.Account(group, from); !ok && from != to {
		call.reply(ctx, message.Format("", "", "You need an account to transfer credits. Type %sregister to open one.", robo.Prefix))
		return
	}
	name := call.mentioned(robo, to)
	err := robo.Ledger.Transfer(ctx, group, from, to, n)
	switch {
	case err == nil:
		call.reply(ctx, message.Format("", "", "%s credits have been transferred to %s's account.", credits(n), name))
	case errors.Is(err, ledger.ErrSameParty):
		call.reply(ctx, message.Format("", "", "You can't transfer credits to yourself."))
	case errors.Is(err, ledger.ErrInsufficientBalance):
		call.reply(ctx, message.Format("", "", "You don't have that sum in your bank account."))
	case errors.Is(err, ledger.ErrNoAccount):
		call.reply(ctx, message.Format("", "", "%s does not have an account registered with the bank.", name))
	case errors.Is(err, ledger.ErrInvalidAmount):
		call.reply(ctx, message.Format("", "", "%s can't hold that many credits.", name))
	default:
		robo.Log.ErrorContext(ctx, "transfer failed", slog.Any("err", err), slog.String("from", from), slog.String("to", to))
		call.reply(ctx, message.Format("", "", "Something went wrong with the transfer. Try again. Sorry!"))
	}
}

// SetBalance sets a user's balance, opening an account if needed.
// Owner only.
//   - user: ID of the user.
//   - amount: New balance.
func SetBalance(ctx context.Context, robo *Robot, call *Invocation) {
	group, user := call.Channel.Group, call.Args["user"]
	n, ok := amount(call.Args["amount"])
	if !ok || n < 0 {
		call.reply(ctx, message.Format("", "", "Balances can't be negative."))
		return
	}
	name := call.mentioned(robo, user)
	opened := false
	err := robo.Ledger.Set(ctx, group, user, n)
	if errors.Is(err, ledger.ErrNoAccount) {
		opened = true
		err = robo.Ledger.Create(ctx, group, user, name, n)
	}
	if err != nil {
		robo.Log.ErrorContext(ctx, "set balance failed", slog.Any("err", err), slog.String("user", user))
		call.reply(ctx, message.Format("", "", "Something went wrong setting the balance. Try again. Sorry!"))
		return
	}
	robo.Log.InfoContext(ctx, "set balance",
		slog.String("group", group),
		slog.String("by", call.Message.Sender),
		slog.String("user", user),
		slog.Int64("amount", n),
	)
	if opened {
		call.reply(ctx, message.Format("", "", "%s had no existing account so new account opened with balance: %s", name, credits(n)))
		return
	}
	call.reply(ctx, message.Format("", "", "%s's credits have been set to %s.", name, credits(n)))
}

// Wipe deletes every account in the invoker's server. Owner only.
func Wipe(ctx context.Context, robo *Robot, call *Invocation) {
	group := call.Channel.Group
	if err := robo.Ledger.Wipe(ctx, group); err != nil {
		robo.Log.ErrorContext(ctx, "wipe failed", slog.Any("err", err), slog.String("group", group))
		call.reply(ctx, message.Format("", "", "Something went wrong wiping the bank. Nothing was deleted."))
		return
	}
	robo.Payday.Forget(group)
	robo.Log.InfoContext(ctx, "bank wiped", slog.String("group", group), slog.String("by", call.Message.Sender))
	call.reply(ctx, message.Format("", "", "Wipe successful."))
}

// Payday grants the server's payday credits if enough time has passed since
// the invoker's last claim.
func Payday(ctx context.Context, robo *Robot, call *Invocation) {
	group, user := call.Channel.Group, call.Message.Sender
	if _, ok := robo.Ledger.Account(group, user); !ok {
		call.reply(ctx, message.Format("", "", "You need an account to receive credits. Type %sregister to open one.", robo.Prefix))
		return
	}
	eco := robo.Economy.For(group)
	now := robo.now()
	ok, wait := robo.Payday.Claim(group, user, now, time.Duration(eco.PaydayTime)*time.Second)
	if !ok {
		call.reply(ctx, message.Format("", "", "Too soon. For your next payday you have to wait %s.", payday.Describe(wait)))
		return
	}
	if err := robo.Ledger.Deposit(ctx, group, user, eco.PaydayCredits); err != nil {
		robo.Payday.Undo(group, user, now)
		robo.Log.ErrorContext(ctx, "payday deposit failed", slog.Any("err", err), slog.String("user", user))
		call.reply(ctx, message.Format("", "", "Something went wrong depositing your payday. Try again. Sorry!"))
		return
	}
	robo.Metrics.PaydayClaimed.Observe(1)
	robo.Log.InfoContext(ctx, "payday",
		slog.String("group", group),
		slog.String("user", user),
		slog.Int64("amount", eco.PaydayCredits),
	)
	call.reply(ctx, message.Format("", "", "%s, %s credits have been added to your account!", call.Message.Name, credits(eco.PaydayCredits)))
}

// Leaderboard shows the richest accounts in the server or everywhere.
// The global leaderboard is owner only.
//   - scope: "server", "global", or empty for server.
//   - top: Number of accounts to show, or empty for 10.
func Leaderboard(ctx context.Context, robo *Robot, call *Invocation) {
	top, err := strconv.Atoi(call.Args["top"])
	if err != nil || top < 1 {
		top = 10
	}
	var accts []ledger.Account
	global := strings.EqualFold(call.Args["scope"], "global")
	if global {
		if !robo.IsOwner(call.Message.Sender) {
			call.reply(ctx, message.Format("", "", "Only the bot owner can see the global leaderboard."))
			return
		}
		accts = robo.Ledger.All()
	} else {
		accts = robo.Ledger.Accounts(call.Channel.Group)
	}
	if len(accts) == 0 {
		call.reply(ctx, message.Format("", "", "There are no accounts in the bank."))
		return
	}
	s := FormatLeaderboard(accts, top)
	// Leave room for the code fence within a 2000 character message.
	if len(s) >= 1985 {
		call.reply(ctx, message.Format("", "", "The leaderboard is too big to be displayed. Try with a lower number."))
		return
	}
	call.reply(ctx, message.Sent{Text: "```\n" + s + "```"})
}

// FormatLeaderboard formats the first top accounts as aligned lines of
// place, name, and balance.
func FormatLeaderboard(accts []ledger.Account, top int) string {
	accts = accts[:min(top, len(accts))]
	w := len(strconv.Itoa(len(accts))) + 1
	var b strings.Builder
	for i, a := range accts {
		c := credits(a.Balance)
		fmt.Fprintf(&b, "%-*d%-*s%s\n", w, i+1, max(23-len(c), len(a.Name)+1), a.Name+" ", c)
	}
	return b.String()
}

// EconomySet changes the server's payday settings. Owner only.
//   - key: "paydaytime", "paydaycredits", or empty to show the settings.
//   - value: New value.
func EconomySet(ctx context.Context, robo *Robot, call *Invocation) {
	group := call.Channel.Group
	key := strings.ToLower(call.Args["key"])
	if key == "" {
		eco := robo.Economy.For(group)
		call.reply(ctx, message.Format("", "", "```\nPAYDAY_TIME: %d\nPAYDAY_CREDITS: %d\n```", eco.PaydayTime, eco.PaydayCredits))
		return
	}
	n, ok := amount(call.Args["value"])
	if !ok || n < 0 {
		call.reply(ctx, message.Format("", "", "The value must be a whole number that isn't negative."))
		return
	}
	var err error
	switch key {
	case "paydaytime":
		_, err = robo.Economy.Update(group, func(e *settings.Economy) { e.PaydayTime = n })
	case "paydaycredits":
		_, err = robo.Economy.Update(group, func(e *settings.Economy) { e.PaydayCredits = n })
	default:
		call.reply(ctx, message.Format("", "", "I don't know the setting %q.", key))
		return
	}
	if err != nil {
		robo.Log.ErrorContext(ctx, "couldn't save economy settings", slog.Any("err", err), slog.String("group", group))
		call.reply(ctx, message.Format("", "", "Something went wrong saving the settings. Nothing changed."))
		return
	}
	robo.Log.InfoContext(ctx, "economy settings changed",
		slog.String("group", group),
		slog.String("key", key),
		slog.Int64("value", n),
	)
	switch key {
	case "paydaytime":
		call.reply(ctx, message.Format("", "", "Value modified. At least %s must pass between each payday.", payday.Describe(time.Duration(n)*time.Second)))
	case "paydaycredits":
		call.reply(ctx, message.Format("", "", "Every payday will now give %s credits.", credits(n)))
	}
}
