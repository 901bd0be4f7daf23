package keyboard

import "testing"

func TestReplyButtons(t *testing.T) {
	m := ReplyButtons([]string{"❌ Cancel"})
	if !m.ResizeKeyboard {
		t.Fatal("reply keyboard should be resized")
	}
	if len(m.ReplyKeyboard) != 1 || len(m.ReplyKeyboard[0]) != 1 || m.ReplyKeyboard[0][0].Text != "❌ Cancel" {
		t.Fatalf("unexpected keyboard: %+v", m.ReplyKeyboard)
	}
}

func TestInlineButtonsRows(t *testing.T) {
	m := InlineButtonsRows(
		[]InlineBtn{{Text: "A", Unique: "a_btn"}},
		[]InlineBtn{{Text: "B", Unique: "b_btn"}, {Text: "C", Unique: "c_btn", Data: "x"}},
	)
	if len(m.InlineKeyboard) != 2 || len(m.InlineKeyboard[1]) != 2 {
		t.Fatalf("unexpected layout: %+v", m.InlineKeyboard)
	}
	if got := m.InlineKeyboard[1][1].Unique; got != "c_btn" {
		t.Fatalf("unique = %q", got)
	}
	if !RemoveKeyboard().RemoveKeyboard {
		t.Fatal("RemoveKeyboard should set the flag")
	}
}
