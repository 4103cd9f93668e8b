package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/dynshot/internal/dynamo"
	"github.com/san-kum/dynshot/internal/trajectory"
)

const (
	canvasWidth  = 60
	canvasHeight = 20
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(44)
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
)

// Frame is one recorded state. F is the force applied from this state on;
// it is zero for the final frame.
type Frame struct {
	Time float64
	Q, V dynamo.State
	F    dynamo.State
}

// Frames turns a start state and rollout into len(times) frames. times
// must hold one entry per state, start included.
func Frames(times []float64, start dynamo.State, r *trajectory.Rollout) []Frame {
	dofs, steps := r.Dims()
	if len(times) != steps+1 {
		panic(dynamo.DimensionError("times", len(times), steps+1))
	}
	frames := make([]Frame, steps+1)
	for k := range frames {
		f := Frame{Time: times[k], Q: make(dynamo.State, dofs), V: make(dynamo.State, dofs), F: make(dynamo.State, dofs)}
		for i := 0; i < dofs; i++ {
			if k == 0 {
				f.Q[i], f.V[i] = start[i], start[dofs+i]
			} else {
				f.Q[i], f.V[i] = r.Poses.At(i, k-1), r.Vels.At(i, k-1)
			}
			if k < steps {
				f.F[i] = r.Forces.At(i, k)
			}
		}
		frames[k] = f
	}
	return frames
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Player replays a saved trajectory in the terminal.
type Player struct {
	model    string
	names    []string
	frames   []Frame
	energy   []float64
	head     int
	speed    int
	running  bool
	showHelp bool
	canvas   *Canvas
}

// NewPlayer replays frames of the named model. energy may be nil; when set
// it holds one value per frame.
func NewPlayer(model string, names []string, frames []Frame, energy []float64) Player {
	return Player{
		model:   model,
		names:   names,
		frames:  frames,
		energy:  energy,
		speed:   1,
		running: true,
		canvas:  NewCanvas(canvasWidth, canvasHeight),
	}
}

func (p Player) Head() int     { return p.head }
func (p Player) Running() bool { return p.running }

func (p Player) Init() tea.Cmd {
	return tick()
}

func (p Player) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return p, tea.Quit
		case " ":
			if p.atEnd() {
				p.restart()
			}
			p.running = !p.running
		case "r":
			p.restart()
		case "[", "left", "h":
			p.scrub(-p.speed)
		case "]", "right", "l":
			p.scrub(p.speed)
		case "+", "=":
			p.speed = min(p.speed*2, 64)
		case "-", "_":
			p.speed = max(p.speed/2, 1)
		case "?":
			p.showHelp = !p.showHelp
		}
	case tickMsg:
		if p.running {
			p.advance(p.speed)
		}
		return p, tick()
	}
	return p, nil
}

func (p *Player) atEnd() bool { return p.head >= len(p.frames)-1 }

func (p *Player) advance(n int) {
	p.head = min(p.head+n, len(p.frames)-1)
	if p.atEnd() {
		p.running = false
	}
}

func (p *Player) scrub(n int) {
	p.running = false
	p.head = clampInt(p.head+n, 0, len(p.frames)-1)
}

func (p *Player) restart() {
	p.head = 0
}

func (p Player) View() string {
	if len(p.frames) == 0 {
		return "nothing to play\n"
	}
	frame := p.frames[p.head]
	p.draw(frame)

	var s strings.Builder
	s.WriteString(Title.Render(strings.ToUpper(p.model)) + "\n")
	status := "PLAYING"
	switch {
	case p.atEnd():
		status = "END"
	case !p.running:
		status = "PAUSED"
	}
	s.WriteString(fmt.Sprintf("%s  x%d\n\n", status, p.speed))
	s.WriteString(MetricLabel.Render("time") + MetricValue.Render(fmt.Sprintf("%.3fs", frame.Time)) + "\n")
	s.WriteString(MetricLabel.Render("frame") + MetricValue.Render(fmt.Sprintf("%d/%d", p.head, len(p.frames)-1)) + "\n")
	s.WriteString(ProgressBar(float64(p.head)/float64(max(len(p.frames)-1, 1)), 30) + "\n\n")

	for i, name := range p.names {
		s.WriteString(MetricLabel.Render(name) +
			MetricValue.Render(fmt.Sprintf("q %+.3f  v %+.3f  f %+.3f", frame.Q[i], frame.V[i], frame.F[i])) + "\n")
	}

	if len(p.energy) > 1 {
		upto := p.energy[:p.head+1]
		if len(upto) < 2 {
			upto = p.energy[:2]
		}
		chart := asciigraph.Plot(upto, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("energy"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	s.WriteString("\n" + KeyHint.Render("SPACE play/pause  [ ] scrub  +/- speed  R restart  Q quit"))
	if p.showHelp {
		s.WriteString("\n" + KeyHint.Render("frames are the states before each step; the last is the final state"))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		canvasStyle.Render(p.canvas.String()),
		statsStyle.Render(s.String()))
}

func (p *Player) draw(frame Frame) {
	p.canvas.Clear()
	switch p.model {
	case "pendulum":
		p.drawPendulums(frame.Q[:1], false)
	case "double_pendulum":
		p.drawPendulums(frame.Q, true)
	case "coupled_pendulums":
		p.drawCoupled(frame.Q)
	case "cartpole":
		p.drawCartpole(frame.Q)
	case "mass_chain":
		p.drawMassChain(frame.Q)
	default:
		p.drawBars(frame.Q)
	}
}

// drawPendulums draws a pendulum per angle, either chained or from one
// pivot.
func (p *Player) drawPendulums(angles dynamo.State, chained bool) {
	w, h := p.canvas.Size()
	cx, cy := w/2, 8
	length := float64(h) * 0.75 / float64(len(angles))
	x, y := cx, cy
	for _, theta := range angles {
		bx, by := x+int(length*math.Sin(theta)), y+int(length*math.Cos(theta))
		p.canvas.DrawLine(x, y, bx, by)
		p.canvas.Blob(bx, by, 1)
		if chained {
			x, y = bx, by
		}
	}
}

func (p *Player) drawCoupled(q dynamo.State) {
	w, h := p.canvas.Size()
	a1x, a2x, ay, l := w/3, 2*w/3, 8, float64(h)*0.6
	b1x, b1y := a1x+int(l*math.Sin(q[0])), ay+int(l*math.Cos(q[0]))
	b2x, b2y := a2x+int(l*math.Sin(q[1])), ay+int(l*math.Cos(q[1]))
	p.canvas.DrawLine(a1x, ay, b1x, b1y)
	p.canvas.DrawLine(a2x, ay, b2x, b2y)
	p.canvas.DrawLine(b1x, b1y, b2x, b2y)
	p.canvas.Blob(b1x, b1y, 2)
	p.canvas.Blob(b2x, b2y, 2)
}

func (p *Player) drawCartpole(q dynamo.State) {
	w, h := p.canvas.Size()
	groundY := h - 12
	cartX := w/2 + int(q[0]*20)
	p.canvas.DrawLine(0, groundY+4, w, groundY+4)
	for dy := 0; dy < 4; dy++ {
		p.canvas.DrawLine(cartX-6, groundY+dy, cartX+6, groundY+dy)
	}
	poleLen := float64(h) * 0.6
	px, py := cartX+int(poleLen*math.Sin(q[1])), groundY-int(poleLen*math.Cos(q[1]))
	p.canvas.DrawLine(cartX, groundY, px, py)
	p.canvas.Blob(px, py, 1)
}

func (p *Player) drawMassChain(q dynamo.State) {
	w, h := p.canvas.Size()
	n := len(q)
	spacing, scale := w/(n+1), float64(h)/4.0
	cy := h / 2
	px, py := 0, cy
	p.canvas.DrawLine(0, 0, 0, h-1)
	for i, disp := range q {
		x := (i + 1) * spacing
		y := clampInt(cy+int(disp*scale), 0, h-1)
		p.canvas.DrawLine(px, py, x, y)
		p.canvas.Blob(x, y, 2)
		px, py = x, y
	}
}

func (p *Player) drawBars(q dynamo.State) {
	w, h := p.canvas.Size()
	cy := h / 2
	barWidth, gap := 8, 4
	startX := (w - len(q)*(barWidth+gap)) / 2
	for i, v := range q {
		bx := startX + i*(barWidth+gap)
		top := clampInt(cy-int(v*10), 0, h-1)
		for x := bx; x < bx+barWidth; x++ {
			p.canvas.DrawLine(x, cy, x, top)
		}
	}
}
