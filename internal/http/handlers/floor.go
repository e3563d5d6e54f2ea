package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"tablefront-pos-service/internal/middleware"
	"tablefront-pos-service/internal/utils"
	"tablefront-pos-service/pkg/response"

	"github.com/jackc/pgx/v5"
)

type Area struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	TableCount int64  `json:"tableCount"`
}

type Table struct {
	ID          int64  `json:"id"`
	AreaID      int64  `json:"areaId"`
	AreaName    string `json:"areaName"`
	TableNumber string `json:"tableNumber"`
	Capacity    int    `json:"capacity"`
}

func (h *Handler) AreasList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	rows, err := h.DB.Query(ctx, `
		select a.id, a.name, count(t.id)
		from areas a
		left join tables t on t.area_id = a.id
		where a.restaurant_id = $1
		group by a.id
		order by a.name
	`, *authCtx.RestaurantID)
	if err != nil {
		h.Logger.Error("area list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch areas")
		return
	}
	defer rows.Close()

	areas := make([]Area, 0)
	for rows.Next() {
		var a Area
		if err := rows.Scan(&a.ID, &a.Name, &a.TableCount); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch areas")
			return
		}
		areas = append(areas, a)
	}
	response.Success(w, map[string]any{"areas": areas})
}

func (h *Handler) AreasCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Area name is required")
		return
	}

	var id int64
	err := h.DB.QueryRow(ctx,
		`insert into areas (restaurant_id, name) values ($1, $2) returning id`,
		*authCtx.RestaurantID, name,
	).Scan(&id)
	if isUniqueViolation(err) {
		response.Error(w, http.StatusConflict, "DUPLICATE_NAME", "An area with this name already exists")
		return
	}
	if err != nil {
		h.Logger.Error("area insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create area")
		return
	}
	response.Created(w, map[string]any{"id": id})
}

func (h *Handler) AreasUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	areaID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Area ID is required")
		return
	}

	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Area name is required")
		return
	}

	tag, err := h.DB.Exec(ctx,
		`update areas set name = $1, updated_at = now() where id = $2 and restaurant_id = $3`,
		name, areaID, *authCtx.RestaurantID,
	)
	if isUniqueViolation(err) {
		response.Error(w, http.StatusConflict, "DUPLICATE_NAME", "An area with this name already exists")
		return
	}
	if err != nil {
		h.Logger.Error("area update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update area")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Area not found")
		return
	}
	response.Success(w, map[string]any{"updated": true})
}

func (h *Handler) AreasDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	areaID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Area ID is required")
		return
	}

	var tableCount int64
	if err := h.DB.QueryRow(ctx, `select count(*) from tables where area_id = $1`, areaID).Scan(&tableCount); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete area")
		return
	}
	if tableCount > 0 {
		response.Error(w, http.StatusConflict, "AREA_NOT_EMPTY", "Move or delete the area's tables first")
		return
	}

	tag, err := h.DB.Exec(ctx,
		`delete from areas where id = $1 and restaurant_id = $2`, areaID, *authCtx.RestaurantID,
	)
	if err != nil {
		h.Logger.Error("area delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete area")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Area not found")
		return
	}
	response.Success(w, map[string]any{"deleted": true})
}

func (h *Handler) TablesList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	rows, err := h.DB.Query(ctx, `
		select t.id, t.area_id, a.name, t.table_number, t.capacity
		from tables t
		join areas a on a.id = t.area_id
		where t.restaurant_id = $1
		order by a.name, t.table_number
	`, *authCtx.RestaurantID)
	if err != nil {
		h.Logger.Error("table list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch tables")
		return
	}
	defer rows.Close()

	tables := make([]Table, 0)
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.ID, &t.AreaID, &t.AreaName, &t.TableNumber, &t.Capacity); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch tables")
			return
		}
		tables = append(tables, t)
	}
	response.Success(w, map[string]any{"tables": tables})
}

func (h *Handler) TablesCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	var payload struct {
		AreaID      int64  `json:"areaId"`
		TableNumber string `json:"tableNumber"`
		Capacity    int    `json:"capacity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	tableNumber := strings.TrimSpace(payload.TableNumber)
	if tableNumber == "" || payload.AreaID == 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table number and area are required")
		return
	}
	if payload.Capacity <= 0 {
		payload.Capacity = 2
	}

	var areaOK bool
	err := h.DB.QueryRow(ctx,
		`select exists(select 1 from areas where id = $1 and restaurant_id = $2)`,
		payload.AreaID, *authCtx.RestaurantID,
	).Scan(&areaOK)
	if err != nil || !areaOK {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Area not found")
		return
	}

	var id int64
	err = h.DB.QueryRow(ctx,
		`insert into tables (restaurant_id, area_id, table_number, capacity) values ($1, $2, $3, $4) returning id`,
		*authCtx.RestaurantID, payload.AreaID, tableNumber, payload.Capacity,
	).Scan(&id)
	if isUniqueViolation(err) {
		response.Error(w, http.StatusConflict, "DUPLICATE_NAME", "A table with this number already exists")
		return
	}
	if err != nil {
		h.Logger.Error("table insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create table")
		return
	}
	response.Created(w, map[string]any{"id": id})
}

func (h *Handler) TablesUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	tableID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return
	}

	var payload struct {
		AreaID      *int64  `json:"areaId"`
		TableNumber *string `json:"tableNumber"`
		Capacity    *int    `json:"capacity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if payload.Capacity != nil && *payload.Capacity <= 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Capacity must be positive")
		return
	}
	if payload.AreaID != nil {
		var areaOK bool
		err := h.DB.QueryRow(ctx,
			`select exists(select 1 from areas where id = $1 and restaurant_id = $2)`,
			*payload.AreaID, *authCtx.RestaurantID,
		).Scan(&areaOK)
		if err != nil || !areaOK {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Area not found")
			return
		}
	}

	tag, err := h.DB.Exec(ctx, `
		update tables
		set area_id = coalesce($1, area_id),
			table_number = coalesce(nullif(trim($2), ''), table_number),
			capacity = coalesce($3, capacity),
			updated_at = now()
		where id = $4 and restaurant_id = $5
	`, payload.AreaID, payload.TableNumber, payload.Capacity, tableID, *authCtx.RestaurantID)
	if isUniqueViolation(err) {
		response.Error(w, http.StatusConflict, "DUPLICATE_NAME", "A table with this number already exists")
		return
	}
	if err != nil {
		h.Logger.Error("table update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update table")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
		return
	}
	response.Success(w, map[string]any{"updated": true})
}

func (h *Handler) TablesDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	tableID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return
	}

	tag, err := h.DB.Exec(ctx,
		`delete from tables where id = $1 and restaurant_id = $2`, tableID, *authCtx.RestaurantID,
	)
	if err != nil {
		h.Logger.Error("table delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete table")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
		return
	}
	response.Success(w, map[string]any{"deleted": true})
}

// TableQRCode renders a PNG linking the physical table to the restaurant's
// public ordering page.
func (h *Handler) TableQRCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	tableID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return
	}

	var code, tableNumber string
	err = h.DB.QueryRow(ctx, `
		select rst.code, t.table_number
		from tables t
		join restaurants rst on rst.id = t.restaurant_id
		where t.id = $1 and t.restaurant_id = $2
	`, tableID, *authCtx.RestaurantID).Scan(&code, &tableNumber)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
		return
	}
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate QR code")
		return
	}

	link := fmt.Sprintf("%s/%s/order?table=%s", strings.TrimRight(h.Config.PublicSiteBaseURL, "/"), code, tableNumber)
	png, err := utils.GenerateQRCode(link, 512)
	if err != nil {
		h.Logger.Error("qr generation failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="table-%s.png"`, tableNumber))
	_, _ = w.Write(png)
}
