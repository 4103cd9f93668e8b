// Package viz renders trajectories and derivative checks in the terminal.
//
// Static output ([RenderVerification], [RenderSuite], [RenderSparsity],
// [PlotRollout]) is plain text styled with lipgloss. [Player] is a Bubble
// Tea model that replays a saved rollout frame by frame on a braille
// [Canvas].
//
// # Key Bindings
//
//	Space - Pause/Resume playback
//	[ ]   - Step backward/forward
//	+ -   - Double/halve playback speed
//	R     - Restart
//	Q     - Quit
package viz
