package dialog

import "browser-harness/internal/domain/entity"

// Accept accepts every dialog; prompts receive text.
func Accept(text string) entity.DialogHandler {
	return func(entity.DialogEvent) entity.DialogResponse {
		return entity.DialogResponse{Accept: true, Text: text}
	}
}

func Dismiss() entity.DialogHandler {
	return func(entity.DialogEvent) entity.DialogResponse {
		return entity.DialogResponse{}
	}
}

// Record appends each event to into and answers with resp.
func Record(into *[]entity.DialogEvent, resp entity.DialogResponse) entity.DialogHandler {
	return func(ev entity.DialogEvent) entity.DialogResponse {
		*into = append(*into, ev)
		return resp
	}
}
