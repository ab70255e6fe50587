package keyboard

import tele "gopkg.in/telebot.v4"

const buttonsPerRow = 3

// Remove returns a markup that hides the custom keyboard.
func Remove() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// ReplyButtons builds a one-time reply keyboard from a flat list of labels,
// chunked into rows of up to three buttons.
func ReplyButtons(labels []string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	var rows []tele.Row
	for _, chunk := range chunkLabels(labels, buttonsPerRow) {
		var buttons []tele.Btn
		for _, label := range chunk {
			buttons = append(buttons, markup.Text(label))
		}
		rows = append(rows, markup.Row(buttons...))
	}
	markup.Reply(rows...)
	return markup
}

// YesNo builds a one-time reply keyboard with Yes and No buttons.
func YesNo() *tele.ReplyMarkup {
	return ReplyButtons([]string{"Yes", "No"})
}

// LocationRequest builds a one-time reply keyboard with a single button
// that asks the client to share its current location.
func LocationRequest() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	markup.Reply(markup.Row(markup.Location("Send location")))
	return markup
}

func chunkLabels(labels []string, n int) [][]string {
	if n <= 1 {
		out := make([][]string, 0, len(labels))
		for _, l := range labels {
			out = append(out, []string{l})
		}
		return out
	}
	var rows [][]string
	for i := 0; i < len(labels); i += n {
		end := i + n
		if end > len(labels) {
			end = len(labels)
		}
		rows = append(rows, labels[i:end])
	}
	return rows
}
