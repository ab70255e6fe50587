package keyboard

import "testing"

func TestReplyButtonsChunking(t *testing.T) {
	markup := ReplyButtons([]string{"a", "b", "c", "d", "e"})
	if !markup.OneTimeKeyboard || !markup.ResizeKeyboard {
		t.Fatal("reply keyboards should be one-time and resized")
	}
	if len(markup.ReplyKeyboard) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(markup.ReplyKeyboard))
	}
	if len(markup.ReplyKeyboard[0]) != 3 || len(markup.ReplyKeyboard[1]) != 2 {
		t.Fatalf("expected rows of 3 and 2, got %d and %d",
			len(markup.ReplyKeyboard[0]), len(markup.ReplyKeyboard[1]))
	}
	if markup.ReplyKeyboard[0][0].Text != "a" || markup.ReplyKeyboard[1][1].Text != "e" {
		t.Fatal("labels out of order")
	}
}

func TestYesNo(t *testing.T) {
	markup := YesNo()
	if len(markup.ReplyKeyboard) != 1 || len(markup.ReplyKeyboard[0]) != 2 {
		t.Fatalf("expected one row with two buttons, got %+v", markup.ReplyKeyboard)
	}
	if markup.ReplyKeyboard[0][0].Text != "Yes" || markup.ReplyKeyboard[0][1].Text != "No" {
		t.Fatal("unexpected labels")
	}
}

func TestLocationRequest(t *testing.T) {
	markup := LocationRequest()
	if len(markup.ReplyKeyboard) != 1 || len(markup.ReplyKeyboard[0]) != 1 {
		t.Fatalf("expected a single button, got %+v", markup.ReplyKeyboard)
	}
	if !markup.ReplyKeyboard[0][0].Location {
		t.Fatal("button must request location sharing")
	}
	if !markup.OneTimeKeyboard {
		t.Fatal("location keyboard should be one-time")
	}
}

func TestRemove(t *testing.T) {
	if !Remove().RemoveKeyboard {
		t.Fatal("Remove must hide the keyboard")
	}
}
