// Package tui implements the terminal presentation of the game using Bubble Tea.
//
// # Architecture
//
// The Model holds a *game.Controller and a text input. Every edit of the
// input is forwarded to Controller.UpdatePendingGuess; enter calls
// Controller.SubmitGuess. The controller stays the single source of
// truth and the view is rendered from its Snapshot.
//
// # Timer-driven restarts
//
// The automatic restart after a correct guess happens on the
// controller's timer goroutine. The model subscribes to the controller
// and bridges notifications into the Bubble Tea loop:
//
//	Controller.Subscribe → changes channel → waitForChange() → roundChangedMsg
//
// While a round is solved the input is blurred; it is refocused when the
// next round starts.
package tui
