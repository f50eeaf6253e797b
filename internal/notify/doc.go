// Package notify implements the optional notification side channel.
//
// The channel is a Telegram bot driven by the TelegramMessenger block of the
// settings document. Controller.Apply is re-evaluated on every
// reconciliation: it builds and arms a messenger on the disabled to enabled
// edge, tears it down on the way back, reconnects when the bot token or
// chat id changes, and runs the periodic autoping. Workers hold the Relay,
// which always forwards to the current messenger and silently drops messages
// while the channel is off.
package notify
