// Package tui provides the Bubble Tea account switcher.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/riotswitch/internal/controller"
	"github.com/verte-zerg/riotswitch/internal/model"
)

// Service is the controller surface the TUI drives.
type Service interface {
	Accounts(ctx context.Context) []model.Account
	Regions() []string
	SpeedSetting(ctx context.Context) model.Speed
	SetSpeedSetting(ctx context.Context, speed int) model.Result
	SaveAccount(ctx context.Context, username, password, region string) model.Result
	DeleteAccount(ctx context.Context, username string) model.Result
	Login(ctx context.Context, username, speedLabel string) model.Result
}

var _ Service = (*controller.Controller)(nil)

type mode int

const (
	modeList mode = iota
	modeForm
	modeConfirmDelete
)

const (
	fieldUsername = iota
	fieldPassword
	fieldRegion
	fieldCount
)

const passwordMask = "••••••••"

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#73D13D"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#B0B0B0"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	modalStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A")).
			Padding(1, 2)
)

// loginResultMsg carries the outcome of a login attempt run off the event loop.
type loginResultMsg struct {
	username string
	result   model.Result
}

// Model implements the Bubble Tea account switcher UI.
type Model struct {
	ctx     context.Context
	svc     Service
	regions []string

	accounts []model.Account
	speed    model.Speed
	table    table.Model

	mode      mode
	loggingIn string

	inputs       []textinput.Model
	focus        int
	regionIdx    int
	editing      string
	formError    string
	deleteTarget string

	status   string
	statusOK bool

	width  int
	height int
}

// NewModel constructs the switcher over svc. ctx bounds every action the UI starts.
func NewModel(ctx context.Context, svc Service) *Model {
	m := &Model{
		ctx:     ctx,
		svc:     svc,
		regions: svc.Regions(),
		speed:   svc.SpeedSetting(ctx),
	}
	m.table = table.New(
		table.WithColumns(accountColumns(0)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	m.table.SetStyles(accountTableStyles())
	m.initInputs()
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case loginResultMsg:
		m.loggingIn = ""
		m.setStatus(msg.result)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.mode {
		case modeForm:
			return m.updateForm(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m *Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "enter":
		return m.startLogin()
	case "n":
		return m.startForm(model.Account{Region: m.defaultRegion()})
	case "e":
		acc, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m.startForm(acc)
	case "d":
		acc, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.deleteTarget = acc.Username
		m.mode = modeConfirmDelete
		return m, nil
	case "s":
		next := m.speed.Next()
		res := m.svc.SetSpeedSetting(m.ctx, int(next))
		if res.Success {
			m.speed = next
		}
		m.setStatus(res)
		return m, nil
	case "r":
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) startLogin() (tea.Model, tea.Cmd) {
	acc, ok := m.selected()
	if !ok {
		return m, nil
	}
	if m.loggingIn != "" {
		m.setStatus(model.Fail("Login for '%s' is still running", m.loggingIn))
		return m, nil
	}
	m.loggingIn = acc.Username
	m.status = fmt.Sprintf("Logging in as '%s' (%s)...", acc.Username, m.speed)
	m.statusOK = true
	return m, loginCmd(m.ctx, m.svc, acc.Username, m.speed)
}

func loginCmd(ctx context.Context, svc Service, username string, speed model.Speed) tea.Cmd {
	return func() tea.Msg {
		return loginResultMsg{username: username, result: svc.Login(ctx, username, speed.String())}
	}
}

func (m *Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	target := m.deleteTarget
	m.mode = modeList
	m.deleteTarget = ""
	if msg.String() != "y" && msg.String() != "Y" {
		return m, nil
	}
	m.setStatus(m.svc.DeleteAccount(m.ctx, target))
	m.refresh()
	return m, nil
}

func (m *Model) initInputs() {
	m.inputs = []textinput.Model{
		newFormInput("Username: ", "summoner"),
		newFormInput("Password: ", ""),
	}
	m.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	m.inputs[fieldPassword].EchoCharacter = '•'
}

func newFormInput(prompt, placeholder string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.Placeholder = placeholder
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) startForm(acc model.Account) (tea.Model, tea.Cmd) {
	m.mode = modeForm
	m.formError = ""
	m.editing = acc.Username
	m.inputs[fieldUsername].SetValue(acc.Username)
	m.inputs[fieldPassword].SetValue(acc.Password)
	for i := range m.inputs {
		m.inputs[i].CursorEnd()
	}
	m.regionIdx = max(0, indexOf(m.regions, acc.Region))
	return m, m.setFocus(fieldUsername)
}

func (m *Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeList
		m.formError = ""
		return m, nil
	case tea.KeyEnter:
		return m.submitForm()
	case tea.KeyTab, tea.KeyDown:
		return m, m.setFocus(m.focus + 1)
	case tea.KeyShiftTab, tea.KeyUp:
		return m, m.setFocus(m.focus - 1)
	}
	if m.focus == fieldRegion {
		switch msg.String() {
		case "left", "h":
			m.cycleRegion(-1)
		case "right", "l", " ":
			m.cycleRegion(1)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) submitForm() (tea.Model, tea.Cmd) {
	username := strings.TrimSpace(m.inputs[fieldUsername].Value())
	password := m.inputs[fieldPassword].Value()
	region := ""
	if len(m.regions) > 0 {
		region = m.regions[m.regionIdx]
	}
	res := m.svc.SaveAccount(m.ctx, username, password, region)
	if !res.Success {
		m.formError = res.Message
		return m, nil
	}
	if m.editing != "" && m.editing != username {
		if del := m.svc.DeleteAccount(m.ctx, m.editing); !del.Success {
			res = del
		}
	}
	m.mode = modeList
	m.formError = ""
	m.setStatus(res)
	m.refresh()
	m.selectUsername(username)
	return m, nil
}

func (m *Model) setFocus(idx int) tea.Cmd {
	if idx < 0 {
		idx = fieldCount - 1
	}
	if idx >= fieldCount {
		idx = 0
	}
	m.focus = idx
	var cmd tea.Cmd
	for i := range m.inputs {
		if i == m.focus {
			cmd = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) cycleRegion(delta int) {
	n := len(m.regions)
	if n == 0 {
		return
	}
	m.regionIdx = ((m.regionIdx+delta)%n + n) % n
}

func (m *Model) defaultRegion() string {
	if indexOf(m.regions, model.DefaultRegion) >= 0 || len(m.regions) == 0 {
		return model.DefaultRegion
	}
	return m.regions[0]
}

func (m *Model) refresh() {
	m.accounts = m.svc.Accounts(m.ctx)
	rows := make([]table.Row, 0, len(m.accounts))
	for _, acc := range m.accounts {
		rows = append(rows, table.Row{acc.Username, acc.Region, passwordMask})
	}
	m.table.SetRows(rows)
	if cur := m.table.Cursor(); cur >= len(rows) {
		m.table.SetCursor(max(0, len(rows)-1))
	}
}

func (m *Model) selected() (model.Account, bool) {
	cur := m.table.Cursor()
	if cur < 0 || cur >= len(m.accounts) {
		return model.Account{}, false
	}
	return m.accounts[cur], true
}

func (m *Model) selectUsername(username string) {
	for i, acc := range m.accounts {
		if acc.Username == username {
			m.table.SetCursor(i)
			return
		}
	}
}

func (m *Model) setStatus(res model.Result) {
	m.status = res.Message
	m.statusOK = res.Success
}

func (m *Model) updateLayout() {
	m.table.SetColumns(accountColumns(m.width))
	m.table.SetWidth(max(20, m.width))
	statusLines := len(wrapText(m.status, m.width))
	m.table.SetHeight(max(3, m.height-4-statusLines))
}

func accountColumns(width int) []table.Column {
	region, password := 8, 10
	username := max(16, width-region-password-6)
	return []table.Column{
		{Title: "Username", Width: username},
		{Title: "Region", Width: region},
		{Title: "Password", Width: password},
	}
}

func accountTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

// View implements tea.Model.
func (m *Model) View() string {
	switch m.mode {
	case modeForm:
		return m.place(m.renderForm())
	case modeConfirmDelete:
		return m.place(m.renderConfirm())
	}
	lines := []string{m.renderHeader()}
	if len(m.accounts) == 0 {
		lines = append(lines, mutedStyle.Render("No accounts saved. Press n to add one."))
	} else {
		lines = append(lines, m.table.View())
	}
	lines = append(lines, m.renderHelp())
	if status := m.renderStatus(); status != "" {
		lines = append(lines, status)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderHeader() string {
	return titleStyle.Render("riotswitch") + "  " + headerStyle.Render(fmt.Sprintf("Speed: %s  Accounts: %d", m.speed, len(m.accounts)))
}

func (m *Model) renderHelp() string {
	return headerStyle.Render("enter: login  n: new  e: edit  d: delete  s: speed  r: reload  q: quit")
}

func (m *Model) renderStatus() string {
	if m.status == "" {
		return ""
	}
	style := errorStyle
	if m.statusOK {
		style = successStyle
	}
	lines := wrapText(m.status, m.width)
	for i, line := range lines {
		lines[i] = style.Render(line)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderForm() string {
	title := "New Account"
	if m.editing != "" {
		title = "Edit Account"
	}
	body := []string{activeStyle.Render(title)}
	for _, input := range m.inputs {
		body = append(body, input.View())
	}
	region := "-"
	if len(m.regions) > 0 {
		region = m.regions[m.regionIdx]
	}
	label := labelStyle.Render("Region:   ")
	value := fmt.Sprintf("< %s >", region)
	if m.focus == fieldRegion {
		value = activeStyle.Render(value)
	}
	body = append(body, label+value, "",
		headerStyle.Render("tab: next field  left/right: region  enter: save  esc: cancel"))
	if m.formError != "" {
		body = append(body, errorStyle.Render(m.formError))
	}
	return modalStyle.Width(modalWidth(m.width)).Render(strings.Join(body, "\n"))
}

func (m *Model) renderConfirm() string {
	body := []string{
		activeStyle.Render("Delete Account"),
		fmt.Sprintf("Delete '%s'?", m.deleteTarget),
		headerStyle.Render("y: delete  any other key: cancel"),
	}
	return modalStyle.Width(modalWidth(m.width)).Render(strings.Join(body, "\n"))
}

func (m *Model) place(box string) string {
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func modalWidth(width int) int {
	return max(40, min(width-4, 64))
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}
