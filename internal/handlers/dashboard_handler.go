package handlers

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"

	"github.com/waggishPlayer/hot-wax/internal/composer"
	"github.com/waggishPlayer/hot-wax/internal/gateway"
	"github.com/waggishPlayer/hot-wax/internal/orders"
	"github.com/waggishPlayer/hot-wax/internal/refdata"
	"github.com/waggishPlayer/hot-wax/internal/session"
	"github.com/waggishPlayer/hot-wax/internal/validation"
	"github.com/waggishPlayer/hot-wax/internal/views"
	"github.com/waggishPlayer/hot-wax/internal/workspace"
)

const (
	sessionName  = "dashboard-session"
	workspaceKey = "workspace_id"
	ctxWorkspace = "workspace"
	ctxSession   = "session"

	dashboardPath = "/dashboard"
)

// User-facing texts owned by the dashboard itself.
const (
	MsgSessionExpired = "Your session has expired. Please sign in again."
	MsgLoggedOut      = "Logged out successfully"
	MsgOrderDeleted   = "Order deleted"
	MsgInvalidOrderID = "Invalid order id"
	MsgUnexpected     = "Something went wrong. Please try again."
)

// flash type for errors rendered inside the sign-in form
const flashAuth = "auth"

// HandlerConfig groups dependencies for the dashboard handler.
type HandlerConfig struct {
	Registry  *workspace.Registry
	Sessions  sessions.Store
	Templates *TemplateCache
	Validator *validatorv10.Validate
}

type dashboard struct {
	cfg HandlerConfig
}

// RegisterDashboardRoutes registers the sign-in pages and the dashboard.
func RegisterDashboardRoutes(r *gin.Engine, cfg HandlerConfig) {
	if cfg.Validator == nil {
		cfg.Validator = validation.New()
	}
	h := &dashboard{cfg: cfg}

	web := r.Group("/", h.loadWorkspace)
	web.GET("/login", h.loginPage)
	web.POST("/login", h.login)
	web.POST("/register", h.register)
	web.POST("/logout", h.logout)

	authed := web.Group("/", h.requireAuth)
	authed.GET("/", h.dashboardPage)
	authed.GET(dashboardPath, h.dashboardPage)

	authed.POST("/draft", h.openDraft)
	authed.POST("/draft/items", h.addDraftRow)
	authed.POST("/draft/items/:row/remove", h.removeDraftRow)
	authed.POST("/draft/cancel", h.cancelDraft)
	authed.POST("/draft/submit", h.submitDraft)

	authed.GET("/orders/:id", h.openDetail)
	authed.POST("/detail/close", h.closeDetail)
	authed.GET("/orders/:id/delete", h.confirmDelete)
	authed.POST("/orders/:id/delete", h.deleteOrder)
	authed.POST("/orders/:id/contacts", h.updateContacts)
	authed.POST("/orders/:id/items", h.addItem)
	authed.POST("/orders/:id/items/:seq", h.updateItem)
	authed.POST("/orders/:id/items/:seq/delete", h.removeItem)
}

// --- session plumbing ---

// loadWorkspace attaches the browser session and its workspace, creating
// both on first contact.
func (h *dashboard) loadWorkspace(c *gin.Context) {
	sess, err := h.cfg.Sessions.Get(c.Request, sessionName)
	if err != nil {
		// undecodable cookie, e.g. after a key rotation; start over
		slog.Info("discarding session cookie", "error", err)
	}
	id, _ := sess.Values[workspaceKey].(string)
	ws, ok := h.cfg.Registry.Get(id)
	if !ok {
		ws = h.cfg.Registry.Create()
		sess.Values[workspaceKey] = ws.ID
	}
	c.Set(ctxSession, sess)
	c.Set(ctxWorkspace, ws)
	c.Next()
}

func (h *dashboard) requireAuth(c *gin.Context) {
	if intent := workspaceOf(c).Guard.CheckAuth(); !intent.Proceed() {
		h.redirect(c, intent.Redirect)
		c.Abort()
		return
	}
	c.Next()
}

func workspaceOf(c *gin.Context) *workspace.Workspace {
	return c.MustGet(ctxWorkspace).(*workspace.Workspace)
}

func sessionOf(c *gin.Context) *sessions.Session {
	return c.MustGet(ctxSession).(*sessions.Session)
}

func (h *dashboard) flash(c *gin.Context, typ, msg string) {
	sessionOf(c).AddFlash(FlashMessage{Type: typ, Message: msg})
}

func (h *dashboard) save(c *gin.Context) {
	if err := sessionOf(c).Save(c.Request, c.Writer); err != nil {
		slog.Error("Failed to save session", "error", err)
	}
}

func (h *dashboard) redirect(c *gin.Context, location string) {
	h.save(c)
	c.Redirect(http.StatusSeeOther, location)
}

func (h *dashboard) render(c *gin.Context, name string, data interface{}) {
	tmpl := h.cfg.Templates.Get(name)
	if tmpl == nil {
		c.String(http.StatusInternalServerError, "Template not found")
		return
	}
	h.save(c)
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(c.Writer, layoutTemplate, data); err != nil {
		slog.Error("Failed to render template", "template", name, "error", err)
	}
}

// fail presents err and sends the user on. Unauthorized always ends at the
// login page; an *views.Alert becomes an error flash.
func (h *dashboard) fail(c *gin.Context, err error, back string) {
	var alert *views.Alert
	switch {
	case errors.Is(err, gateway.ErrUnauthorized):
		h.flash(c, FlashError, MsgSessionExpired)
		h.redirect(c, session.LoginPath)
	case errors.As(err, &alert):
		h.flash(c, FlashError, alert.Message)
		h.redirect(c, back)
	default:
		slog.Error("request failed", "path", c.Request.URL.Path, "request_id", requestID(c), "error", err)
		h.flash(c, FlashError, MsgUnexpected)
		h.redirect(c, back)
	}
}

func intParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	return n, err == nil
}

// --- sign in ---

type loginView struct {
	CSRFField template.HTML
	Flashes   []FlashMessage
	Register  bool
	Error     string
}

func (h *dashboard) loginPage(c *gin.Context) {
	if workspaceOf(c).Guard.CheckAuth().Proceed() {
		h.redirect(c, dashboardPath)
		return
	}
	view := loginView{
		CSRFField: csrf.TemplateField(c.Request),
		Register:  c.Query("tab") == "register",
	}
	for _, f := range GetFlash(sessionOf(c)) {
		if f.Type == flashAuth {
			view.Error = f.Message
			continue
		}
		view.Flashes = append(view.Flashes, f)
	}
	h.render(c, "login.html", view)
}

func (h *dashboard) login(c *gin.Context) {
	var form validation.LoginForm
	if err := validation.BindAndValidate(c, &form, h.cfg.Validator); err != nil {
		slog.Info("login form rejected", "fields", validation.Fields(err))
		h.flash(c, flashAuth, validation.Message(err))
		h.redirect(c, session.LoginPath)
		return
	}
	h.signIn(c, session.ModeLogin, form.Username, form.Password, session.LoginPath)
}

func (h *dashboard) register(c *gin.Context) {
	back := session.LoginPath + "?tab=register"
	var form validation.RegisterForm
	if err := validation.BindAndValidate(c, &form, h.cfg.Validator); err != nil {
		slog.Info("register form rejected", "fields", validation.Fields(err))
		h.flash(c, flashAuth, validation.Message(err))
		h.redirect(c, back)
		return
	}
	h.signIn(c, session.ModeRegister, form.Username, form.Password, back)
}

func (h *dashboard) signIn(c *gin.Context, mode session.Mode, username, password, back string) {
	err := workspaceOf(c).SignIn(c.Request.Context(), mode, username, password)
	var failure *session.AuthFailure
	switch {
	case err == nil:
		h.redirect(c, dashboardPath)
	case errors.As(err, &failure):
		h.flash(c, flashAuth, failure.Message)
		h.redirect(c, back)
	default:
		h.fail(c, err, back)
	}
}

func (h *dashboard) logout(c *gin.Context) {
	intent := workspaceOf(c).Logout()
	h.flash(c, FlashSuccess, MsgLoggedOut)
	h.redirect(c, intent.Redirect)
}

// --- dashboard ---

type rowView struct {
	composer.Row
	Products []refdata.Option
}

type composerView struct {
	Open       bool
	Submitting bool
	Error      string
	Header     composer.Header
	Customers  []refdata.Option
	Shipping   []refdata.Option
	Billing    []refdata.Option
	Rows       []rowView
}

type dashboardView struct {
	CSRFField   template.HTML
	Flashes     []FlashMessage
	DisplayName string
	List        views.ListSnapshot
	EmptyHint   string
	Composer    composerView
	Detail      *orders.Detail
	Statuses    []orders.Status
	Contacts    []refdata.Option
	Products    []refdata.Option
}

func (h *dashboard) dashboardPage(c *gin.Context) {
	ws := workspaceOf(c)
	if err := ws.Load(c.Request.Context()); err != nil {
		h.fail(c, err, session.LoginPath)
		return
	}

	view := dashboardView{
		CSRFField:   csrf.TemplateField(c.Request),
		Flashes:     GetFlash(sessionOf(c)),
		DisplayName: ws.Guard.CheckAuth().DisplayName,
		List:        ws.Orders.Snapshot(),
		EmptyHint:   views.MsgNoOrdersHint,
		Composer:    buildComposerView(ws.Composer),
		Statuses:    orders.Statuses(),
		Contacts:    ws.RefData.ContactOptions(""),
		Products:    ws.RefData.ProductOptions(""),
	}
	if d, visible := ws.Detail.Current(); visible {
		view.Detail = d
	}
	h.render(c, "dashboard.html", view)
}

func buildComposerView(cp *composer.Composer) composerView {
	snap := cp.Snapshot()
	v := composerView{
		Open:       snap.Phase != composer.PhaseClosed,
		Submitting: snap.Phase == composer.PhaseSubmitting,
		Error:      snap.Error,
		Header:     snap.Header,
	}
	if !v.Open {
		return v
	}
	v.Customers = cp.CustomerOptions()
	v.Shipping = cp.ShippingOptions()
	v.Billing = cp.BillingOptions()
	for _, r := range snap.Rows {
		v.Rows = append(v.Rows, rowView{Row: r, Products: cp.ProductOptions(r.ID)})
	}
	return v
}

// --- composer ---

// draftForm reads the composer form. Row fields arrive as parallel arrays
// in rendering order.
func draftForm(c *gin.Context) (composer.Header, []composer.Row) {
	h := composer.Header{
		CustomerID:            c.PostForm("customer_id"),
		OrderDate:             c.PostForm("order_date"),
		ShippingContactMechID: c.PostForm("shipping_contact_mech_id"),
		BillingContactMechID:  c.PostForm("billing_contact_mech_id"),
	}
	ids := c.PostFormArray("row_id")
	products := c.PostFormArray("product_id")
	quantities := c.PostFormArray("quantity")
	statuses := c.PostFormArray("status")

	at := func(vals []string, i int) string {
		if i < len(vals) {
			return vals[i]
		}
		return ""
	}
	rows := make([]composer.Row, 0, len(ids))
	for i, id := range ids {
		rows = append(rows, composer.Row{
			ID:        id,
			ProductID: at(products, i),
			Quantity:  at(quantities, i),
			Status:    at(statuses, i),
		})
	}
	return h, rows
}

// syncDraft copies the posted form into the draft. A closed form has nothing
// to sync.
func syncDraft(c *gin.Context, cp *composer.Composer) {
	header, rows := draftForm(c)
	if err := cp.Sync(header, rows); err != nil && !errors.Is(err, composer.ErrNotOpen) {
		slog.Warn("draft sync failed", "error", err)
	}
}

func (h *dashboard) openDraft(c *gin.Context) {
	workspaceOf(c).Composer.Open(c.Request.Context())
	h.redirect(c, dashboardPath)
}

func (h *dashboard) addDraftRow(c *gin.Context) {
	cp := workspaceOf(c).Composer
	syncDraft(c, cp)
	if _, err := cp.AddRow(); err != nil {
		slog.Info("add row ignored", "error", err)
	}
	h.redirect(c, dashboardPath)
}

func (h *dashboard) removeDraftRow(c *gin.Context) {
	cp := workspaceOf(c).Composer
	syncDraft(c, cp)
	if err := cp.RemoveRow(c.Param("row")); err != nil {
		slog.Info("remove row ignored", "error", err)
	}
	h.redirect(c, dashboardPath)
}

func (h *dashboard) cancelDraft(c *gin.Context) {
	workspaceOf(c).Composer.Cancel()
	h.redirect(c, dashboardPath)
}

func (h *dashboard) submitDraft(c *gin.Context) {
	ws := workspaceOf(c)
	syncDraft(c, ws.Composer)

	created, err := ws.SubmitDraft(c.Request.Context(), requestID(c))
	var formErr *composer.FormError
	switch {
	case err == nil:
		if created != nil {
			h.flash(c, FlashSuccess, "Order #"+strconv.Itoa(created.OrderID)+" created")
		}
		h.redirect(c, dashboardPath)
	case errors.As(err, &formErr), errors.Is(err, composer.ErrNotOpen):
		// shown inside the still open form
		h.redirect(c, dashboardPath)
	default:
		h.fail(c, err, dashboardPath)
	}
}

// --- detail and delete ---

func (h *dashboard) openDetail(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		h.flash(c, FlashError, MsgInvalidOrderID)
		h.redirect(c, dashboardPath)
		return
	}
	if err := workspaceOf(c).Detail.Open(c.Request.Context(), id); err != nil {
		h.fail(c, err, dashboardPath)
		return
	}
	h.redirect(c, dashboardPath)
}

func (h *dashboard) closeDetail(c *gin.Context) {
	workspaceOf(c).Detail.Close()
	h.redirect(c, dashboardPath)
}

type deleteView struct {
	CSRFField template.HTML
	Flashes   []FlashMessage
	OrderID   int
	Prompt    string
}

func (h *dashboard) confirmDelete(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		h.flash(c, FlashError, MsgInvalidOrderID)
		h.redirect(c, dashboardPath)
		return
	}
	h.render(c, "delete.html", deleteView{
		CSRFField: csrf.TemplateField(c.Request),
		Flashes:   GetFlash(sessionOf(c)),
		OrderID:   id,
		Prompt:    views.DeletePrompt,
	})
}

func (h *dashboard) deleteOrder(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		h.flash(c, FlashError, MsgInvalidOrderID)
		h.redirect(c, dashboardPath)
		return
	}
	answer := c.PostForm("confirm") == "yes"
	confirm := func(string) bool { return answer }

	if err := workspaceOf(c).DeleteOrder(c.Request.Context(), id, confirm, requestID(c)); err != nil {
		h.fail(c, err, dashboardPath)
		return
	}
	if answer {
		h.flash(c, FlashSuccess, MsgOrderDeleted)
	}
	h.redirect(c, dashboardPath)
}

// orderChange runs a detail-view maintenance call and records it.
func (h *dashboard) orderChange(c *gin.Context, call func(ws *workspace.Workspace, orderID int) error) {
	id, ok := intParam(c, "id")
	if !ok {
		h.flash(c, FlashError, MsgInvalidOrderID)
		h.redirect(c, dashboardPath)
		return
	}
	ws := workspaceOf(c)
	if err := call(ws, id); err != nil {
		h.fail(c, err, dashboardPath)
		return
	}
	ws.Changed(c.Request.Context(), id, requestID(c))
	h.redirect(c, dashboardPath)
}

func (h *dashboard) updateContacts(c *gin.Context) {
	h.orderChange(c, func(ws *workspace.Workspace, id int) error {
		return ws.Detail.UpdateContacts(c.Request.Context(), id,
			c.PostForm("shipping_contact_mech_id"), c.PostForm("billing_contact_mech_id"))
	})
}

func (h *dashboard) addItem(c *gin.Context) {
	h.orderChange(c, func(ws *workspace.Workspace, id int) error {
		return ws.Detail.AddItem(c.Request.Context(), id,
			c.PostForm("product_id"), c.PostForm("quantity"), c.PostForm("status"))
	})
}

func (h *dashboard) updateItem(c *gin.Context) {
	h.orderChange(c, func(ws *workspace.Workspace, id int) error {
		seq, ok := intParam(c, "seq")
		if !ok {
			return &views.Alert{Message: gateway.MsgUpdateItemFailed}
		}
		return ws.Detail.UpdateItem(c.Request.Context(), id, seq, c.PostForm("quantity"), c.PostForm("status"))
	})
}

func (h *dashboard) removeItem(c *gin.Context) {
	h.orderChange(c, func(ws *workspace.Workspace, id int) error {
		seq, ok := intParam(c, "seq")
		if !ok {
			return &views.Alert{Message: gateway.MsgRemoveItemFailed}
		}
		return ws.Detail.RemoveItem(c.Request.Context(), id, seq)
	})
}

// RegisterHealthRoute registers the liveness probe.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
