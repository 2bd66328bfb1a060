// Package chat adapts Twitch IRC to the bot engine. It translates IRC
// callbacks (channel messages, whispers, JOIN/PART notices) into the
// engine's event variants and delivers the returned responses with the
// matching scope: room broadcasts via Say, private replies via Whisper.
package chat
