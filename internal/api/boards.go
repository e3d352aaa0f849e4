// ABOUTME: Board and group permission endpoints for the current visitor.
// ABOUTME: Admin type resolves super > group > board against the stored board and group admins.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/scarson/board-ops/internal/member"
)

// PermissionBody is the visitor's standing on one board or group.
type PermissionBody struct {
	BoardTable    string `json:"bo_table,omitempty"`
	GroupID       string `json:"gr_id,omitempty"`
	MemberID      string `json:"member_id"`
	Level         int    `json:"level"`
	AdminType     string `json:"admin_type"`
	IsSuperAdmin  bool   `json:"is_super_admin"`
	CanAdminister bool   `json:"can_administer"`
}

type permissionOutput struct {
	Body *PermissionBody
}

type boardPermissionInput struct {
	BoardTable string `path:"bo_table" maxLength:"20" doc:"Board table name"`
	Min        string `query:"min" maxLength:"10" doc:"Admin type can_administer requires: super, group or board (default board)"`
}

type groupPermissionInput struct {
	GroupID string `path:"gr_id" maxLength:"10" doc:"Board group ID"`
	Min     string `query:"min" maxLength:"10" doc:"Admin type can_administer requires: super, group or board (default group)"`
}

func registerPermissionRoutes(api huma.API, srv *Server) {
	huma.Register(api, huma.Operation{
		OperationID: "get-board-permission",
		Method:      http.MethodGet,
		Path:        "/boards/{bo_table}/permission",
		Tags:        []string{"permissions"},
		Summary:     "Get the visitor's level and admin type on a board",
	}, srv.boardPermissionHandler)

	huma.Register(api, huma.Operation{
		OperationID: "get-group-permission",
		Method:      http.MethodGet,
		Path:        "/groups/{gr_id}/permission",
		Tags:        []string{"permissions"},
		Summary:     "Get the visitor's level and admin type on a board group",
	}, srv.groupPermissionHandler)
}

// minAdminType reads the ?min= threshold. An empty value selects def.
func minAdminType(raw string, def member.AdminType) (member.AdminType, error) {
	if raw == "" {
		return def, nil
	}
	t := member.ParseAdminType(raw)
	if t == member.AdminNone {
		return "", huma.Error422UnprocessableEntity("min must be one of super, group, board")
	}
	return t, nil
}

func permissionBody(d *member.Details, minAdmin member.AdminType) *PermissionBody {
	return &PermissionBody{
		MemberID:      d.ID(),
		Level:         d.Level,
		AdminType:     string(d.AdminType),
		IsSuperAdmin:  d.IsSuperAdmin(),
		CanAdminister: d.AdminType.AtLeast(minAdmin),
	}
}

// boardPermissionHandler handles GET /api/v1/boards/{bo_table}/permission.
func (srv *Server) boardPermissionHandler(ctx context.Context, input *boardPermissionInput) (*permissionOutput, error) {
	minAdmin, err := minAdminType(input.Min, member.AdminBoard)
	if err != nil {
		return nil, err
	}
	board, err := srv.store.GetBoard(ctx, input.BoardTable)
	if err != nil {
		slog.ErrorContext(ctx, "board permission: get board", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	if board == nil {
		return nil, huma.Error404NotFound("board not found")
	}

	d := requestScope(ctx).Details(loginMember(ctx), board, nil)
	body := permissionBody(d, minAdmin)
	body.BoardTable = board.Table
	if board.Group != nil {
		body.GroupID = board.Group.ID
	}
	return &permissionOutput{Body: body}, nil
}

// groupPermissionHandler handles GET /api/v1/groups/{gr_id}/permission.
func (srv *Server) groupPermissionHandler(ctx context.Context, input *groupPermissionInput) (*permissionOutput, error) {
	minAdmin, err := minAdminType(input.Min, member.AdminGroup)
	if err != nil {
		return nil, err
	}
	group, err := srv.store.GetGroup(ctx, input.GroupID)
	if err != nil {
		slog.ErrorContext(ctx, "group permission: get group", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	if group == nil {
		return nil, huma.Error404NotFound("group not found")
	}

	d := requestScope(ctx).Details(loginMember(ctx), nil, group)
	body := permissionBody(d, minAdmin)
	body.GroupID = group.ID
	return &permissionOutput{Body: body}, nil
}

// boardAdminBody is the response body for GET /boards/{bo_table}/admin.
type boardAdminBody struct {
	BoardTable string `json:"bo_table"`
	Subject    string `json:"subject"`
	BoardAdmin string `json:"board_admin"`
	GroupID    string `json:"gr_id,omitempty"`
	GroupAdmin string `json:"group_admin,omitempty"`
	AdminType  string `json:"admin_type"`
}

// boardAdminHandler handles GET /api/v1/boards/{bo_table}/admin.
// Requires board admin or above.
func (srv *Server) boardAdminHandler(w http.ResponseWriter, r *http.Request) {
	board, ok := r.Context().Value(ctxBoard).(*member.Board)
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	d := requestScope(r.Context()).Details(loginMember(r.Context()), board, nil)

	resp := boardAdminBody{
		BoardTable: board.Table,
		Subject:    board.Subject,
		BoardAdmin: board.Admin,
		AdminType:  string(d.AdminType),
	}
	if board.Group != nil {
		resp.GroupID = board.Group.ID
		resp.GroupAdmin = board.Group.Admin
	}
	writeJSON(w, http.StatusOK, resp)
}
