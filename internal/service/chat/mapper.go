package chat

import (
	"time"

	model "github.com/zhouzirui/pulse-chat/backend/internal/model/analytics"
	"github.com/zhouzirui/pulse-chat/backend/internal/model/chat"
)

const (
	// VisualizationErrorSentinel is the chart_analysis value the upstream sends when
	// chart rendering failed. It suppresses both the chart and its analysis.
	VisualizationErrorSentinel = "Unable to provide analytical insights due to visualization error."

	tableAcceptedStatus = "yes"
)

// MapResult converts a raw upstream result into a bot message.
func MapResult(result model.ChatResult, id string, at time.Time) chat.Message {
	analysis := model.Deref(result.ChartAnalysis)
	tableStatus := model.Deref(result.TableAcceptStatus)

	visualizationError := result.ChartAnalysis != nil && analysis == VisualizationErrorSentinel
	tableAccepted := result.TableAcceptStatus != nil && tableStatus == tableAcceptedStatus

	msg := chat.Message{
		ID:        id,
		Content:   result.TextExplanation,
		Sender:    chat.SenderBot,
		Timestamp: at,
	}
	if !visualizationError {
		msg.ChartURL = model.Deref(result.ChartFileURL)
		msg.Explanation = analysis
	}
	if tableAccepted {
		msg.TableHTML = model.Deref(result.HTMLTableData)
	}

	// An accepted table without markup still reports its status in the text.
	if tableAccepted && msg.TableHTML == "" && tableStatus != "" {
		msg.Content += "\n\nTable Acceptance Status: " + tableStatus
	}

	return msg
}
