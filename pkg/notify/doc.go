// Package notify delivers rendered reports. DiscordSender posts one embed per
// report through a discordgo session; LogSender writes the report to the log
// for dry runs.
package notify
