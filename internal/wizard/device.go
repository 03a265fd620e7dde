package wizard

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aspromise/ktv-casting/internal/core"
)

// DeviceModel is the bubbletea model for the renderer picker.
type DeviceModel struct {
	devices  []core.Device
	cursor   int
	selected *core.Device
	width    int
}

var (
	pickerTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	pickerRow = lipgloss.NewStyle().
			PaddingLeft(2)

	pickerCursor = lipgloss.NewStyle().
			PaddingLeft(2).
			Bold(true).
			Background(lipgloss.Color("237"))

	pickerVolume = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	pickerDim = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

// NewDeviceModel creates a picker over devices.
func NewDeviceModel(devices []core.Device) DeviceModel {
	return DeviceModel{devices: devices, width: 80}
}

// Init initializes the model.
func (m DeviceModel) Init() tea.Cmd {
	return nil
}

// Update handles key presses. Digits 1-9 pick a row directly.
func (m DeviceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		k := msg.String()
		switch k {
		case "ctrl+c", "esc", "q":
			return m, tea.Quit
		case "enter", " ":
			return m.choose(m.cursor)
		case "up", "k", "ctrl+p":
			m.move(-1)
		case "down", "j", "ctrl+n", "tab":
			m.move(1)
		case "home", "g":
			m.cursor = 0
		case "end", "G":
			m.cursor = max(len(m.devices)-1, 0)
		default:
			if n, err := strconv.Atoi(k); err == nil && n >= 1 && n <= 9 {
				return m.choose(n - 1)
			}
		}
	}
	return m, nil
}

func (m *DeviceModel) move(delta int) {
	if len(m.devices) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.devices)-1)
}

func (m DeviceModel) choose(i int) (tea.Model, tea.Cmd) {
	if i < 0 || i >= len(m.devices) {
		return m, nil
	}
	m.cursor = i
	m.selected = &m.devices[i]
	return m, tea.Quit
}

// View renders the model.
func (m DeviceModel) View() string {
	var b strings.Builder
	b.WriteString(pickerTitle.Render("📺 Select Renderer"))
	b.WriteString("\n\n")

	if len(m.devices) == 0 {
		b.WriteString(pickerDim.Render("No renderers found"))
		b.WriteString("\n\n")
		b.WriteString(pickerDim.Render("Make sure the TV or speaker is on and on the same network."))
		b.WriteString("\n")
		return b.String()
	}

	for i, d := range m.devices {
		row := m.renderRow(i, d)
		if i == m.cursor {
			b.WriteString(pickerCursor.Render("▸ " + row))
		} else {
			b.WriteString(pickerRow.Render("  " + row))
		}
		b.WriteString("\n")
	}

	// Details of the highlighted renderer
	cur := m.devices[m.cursor]
	b.WriteString("\n")
	b.WriteString(pickerDim.Render(fmt.Sprintf("UDN %s  •  %s", cur.ID, strings.Join(cur.Capabilities(), ", "))))
	b.WriteString("\n\n")
	b.WriteString(pickerDim.Render("↑/↓ navigate • 1-9 pick • enter select • esc quit"))
	b.WriteString("\n")
	b.WriteString(pickerDim.Render("● volume control  ○ transport only"))
	return b.String()
}

func (m DeviceModel) renderRow(i int, d core.Device) string {
	mark := pickerDim.Render("○")
	if d.Supports(core.RenderingControlURN) {
		mark = pickerVolume.Render("●")
	}

	var info []string
	if d.Model != "" {
		info = append(info, d.Model)
	}
	if host := d.Host(); host != "" {
		info = append(info, host)
	}

	row := fmt.Sprintf("%d. %s %s", i+1, mark, d.Name)
	if len(info) > 0 {
		row += " " + pickerDim.Render("("+strings.Join(info, ", ")+")")
	}
	return row
}

// Selected returns the selected device, or nil if none.
func (m DeviceModel) Selected() *core.Device {
	return m.selected
}

// RunDevicePicker runs the picker full-screen and returns the choice, or
// nil when the user quits.
func RunDevicePicker(devices []core.Device) (*core.Device, error) {
	final, err := tea.NewProgram(NewDeviceModel(devices), tea.WithAltScreen()).Run()
	if err != nil {
		return nil, err
	}
	return final.(DeviceModel).Selected(), nil
}
