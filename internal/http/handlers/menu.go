package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"tablefront-pos-service/internal/cache"
	"tablefront-pos-service/internal/middleware"
	"tablefront-pos-service/internal/utils"
	"tablefront-pos-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type MenuCategory struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
	IsActive  bool   `json:"isActive"`
	ItemCount int64  `json:"itemCount"`
}

type MenuItem struct {
	ID           int64   `json:"id"`
	CategoryID   int64   `json:"categoryId"`
	CategoryName string  `json:"categoryName,omitempty"`
	Name         string  `json:"name"`
	Description  *string `json:"description"`
	Price        float64 `json:"price"`
	ImageURL     *string `json:"imageUrl"`
	ThumbnailURL *string `json:"thumbnailUrl"`
	IsAvailable  bool    `json:"isAvailable"`
}

// invalidatePublicMenu drops the cached public menu and site payloads after
// any admin mutation that changes what customers see.
func (h *Handler) invalidatePublicMenu(r *http.Request, restaurantID int64) {
	var code string
	if err := h.DB.QueryRow(r.Context(), `select code from restaurants where id = $1`, restaurantID).Scan(&code); err != nil {
		return
	}
	h.Cache.Delete(r.Context(), cache.PublicMenuKey(code), cache.PublicSiteKey(code))
}

func (h *Handler) MenuCategoriesList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	rows, err := h.DB.Query(ctx, `
		select c.id, c.name, c.sort_order, c.is_active, count(i.id)
		from menu_categories c
		left join menu_items i on i.category_id = c.id and i.deleted_at is null
		where c.restaurant_id = $1
		group by c.id
		order by c.sort_order, c.name
	`, *authCtx.RestaurantID)
	if err != nil {
		h.Logger.Error("category list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch categories")
		return
	}
	defer rows.Close()

	categories := make([]MenuCategory, 0)
	for rows.Next() {
		var c MenuCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.SortOrder, &c.IsActive, &c.ItemCount); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch categories")
			return
		}
		categories = append(categories, c)
	}
	response.Success(w, map[string]any{"categories": categories})
}

func (h *Handler) MenuCategoriesCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	var payload struct {
		Name      string `json:"name"`
		SortOrder int    `json:"sortOrder"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Category name is required")
		return
	}

	var id int64
	err := h.DB.QueryRow(ctx,
		`insert into menu_categories (restaurant_id, name, sort_order) values ($1, $2, $3) returning id`,
		*authCtx.RestaurantID, name, payload.SortOrder,
	).Scan(&id)
	if isUniqueViolation(err) {
		response.Error(w, http.StatusConflict, "DUPLICATE_NAME", "A category with this name already exists")
		return
	}
	if err != nil {
		h.Logger.Error("category insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create category")
		return
	}

	h.invalidatePublicMenu(r, *authCtx.RestaurantID)
	response.Created(w, map[string]any{"id": id})
}

func (h *Handler) MenuCategoriesUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	categoryID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Category ID is required")
		return
	}

	var payload struct {
		Name      *string `json:"name"`
		SortOrder *int    `json:"sortOrder"`
		IsActive  *bool   `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if payload.Name != nil && strings.TrimSpace(*payload.Name) == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Category name cannot be empty")
		return
	}

	tag, err := h.DB.Exec(ctx, `
		update menu_categories
		set name = coalesce(nullif(trim($1), ''), name),
			sort_order = coalesce($2, sort_order),
			is_active = coalesce($3, is_active),
			updated_at = now()
		where id = $4 and restaurant_id = $5
	`, payload.Name, payload.SortOrder, payload.IsActive, categoryID, *authCtx.RestaurantID)
	if isUniqueViolation(err) {
		response.Error(w, http.StatusConflict, "DUPLICATE_NAME", "A category with this name already exists")
		return
	}
	if err != nil {
		h.Logger.Error("category update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update category")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Category not found")
		return
	}

	h.invalidatePublicMenu(r, *authCtx.RestaurantID)
	response.Success(w, map[string]any{"updated": true})
}

func (h *Handler) MenuCategoriesDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	categoryID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Category ID is required")
		return
	}

	var itemCount int64
	err = h.DB.QueryRow(ctx,
		`select count(*) from menu_items where category_id = $1 and deleted_at is null`, categoryID,
	).Scan(&itemCount)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete category")
		return
	}
	if itemCount > 0 {
		response.Error(w, http.StatusConflict, "CATEGORY_NOT_EMPTY", "Move or delete the category's items first")
		return
	}

	tag, err := h.DB.Exec(ctx,
		`delete from menu_categories where id = $1 and restaurant_id = $2`,
		categoryID, *authCtx.RestaurantID,
	)
	if err != nil {
		h.Logger.Error("category delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete category")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Category not found")
		return
	}

	h.invalidatePublicMenu(r, *authCtx.RestaurantID)
	response.Success(w, map[string]any{"deleted": true})
}

func (h *Handler) MenuItemsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	query := `
		select i.id, i.category_id, c.name, i.name, i.description, i.price,
			i.image_url, i.thumbnail_url, i.is_available
		from menu_items i
		join menu_categories c on c.id = i.category_id
		where i.restaurant_id = $1 and i.deleted_at is null
		order by c.sort_order, c.name, i.name
	`
	rows, err := h.DB.Query(ctx, query, *authCtx.RestaurantID)
	if err != nil {
		h.Logger.Error("menu list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch menu")
		return
	}
	defer rows.Close()

	items := make([]MenuItem, 0)
	for rows.Next() {
		var item MenuItem
		var price pgtype.Numeric
		if err := rows.Scan(
			&item.ID, &item.CategoryID, &item.CategoryName, &item.Name, &item.Description,
			&price, &item.ImageURL, &item.ThumbnailURL, &item.IsAvailable,
		); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch menu")
			return
		}
		item.Price = utils.NumericToFloat64(price)
		items = append(items, item)
	}
	response.Success(w, map[string]any{"items": items})
}

func (h *Handler) MenuItemsCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	var payload struct {
		CategoryID   int64   `json:"categoryId"`
		Name         string  `json:"name"`
		Description  *string `json:"description"`
		Price        float64 `json:"price"`
		ImageURL     *string `json:"imageUrl"`
		ThumbnailURL *string `json:"thumbnailUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	name := strings.TrimSpace(payload.Name)
	if name == "" || payload.CategoryID == 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name and category are required")
		return
	}
	if payload.Price < 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Price cannot be negative")
		return
	}

	// The category must belong to the caller's restaurant.
	var categoryOK bool
	err := h.DB.QueryRow(ctx,
		`select exists(select 1 from menu_categories where id = $1 and restaurant_id = $2)`,
		payload.CategoryID, *authCtx.RestaurantID,
	).Scan(&categoryOK)
	if err != nil || !categoryOK {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Category not found")
		return
	}

	var id int64
	err = h.DB.QueryRow(ctx, `
		insert into menu_items (restaurant_id, category_id, name, description, price, image_url, thumbnail_url)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning id
	`, *authCtx.RestaurantID, payload.CategoryID, name, payload.Description, payload.Price, payload.ImageURL, payload.ThumbnailURL).Scan(&id)
	if isUniqueViolation(err) {
		response.Error(w, http.StatusConflict, "DUPLICATE_NAME", "An item with this name already exists in the category")
		return
	}
	if err != nil {
		h.Logger.Error("menu item insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create menu item")
		return
	}

	h.invalidatePublicMenu(r, *authCtx.RestaurantID)
	response.Created(w, map[string]any{"id": id})
}

func (h *Handler) MenuItemsUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	itemID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Item ID is required")
		return
	}

	var payload struct {
		CategoryID   *int64   `json:"categoryId"`
		Name         *string  `json:"name"`
		Description  *string  `json:"description"`
		Price        *float64 `json:"price"`
		ImageURL     *string  `json:"imageUrl"`
		ThumbnailURL *string  `json:"thumbnailUrl"`
		IsAvailable  *bool    `json:"isAvailable"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if payload.Price != nil && *payload.Price < 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Price cannot be negative")
		return
	}
	if payload.CategoryID != nil {
		var categoryOK bool
		err := h.DB.QueryRow(ctx,
			`select exists(select 1 from menu_categories where id = $1 and restaurant_id = $2)`,
			*payload.CategoryID, *authCtx.RestaurantID,
		).Scan(&categoryOK)
		if err != nil || !categoryOK {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Category not found")
			return
		}
	}

	tag, err := h.DB.Exec(ctx, `
		update menu_items
		set category_id = coalesce($1, category_id),
			name = coalesce(nullif(trim($2), ''), name),
			description = coalesce($3, description),
			price = coalesce($4, price),
			image_url = coalesce($5, image_url),
			thumbnail_url = coalesce($6, thumbnail_url),
			is_available = coalesce($7, is_available),
			updated_at = now()
		where id = $8 and restaurant_id = $9 and deleted_at is null
	`, payload.CategoryID, payload.Name, payload.Description, payload.Price,
		payload.ImageURL, payload.ThumbnailURL, payload.IsAvailable, itemID, *authCtx.RestaurantID)
	if isUniqueViolation(err) {
		response.Error(w, http.StatusConflict, "DUPLICATE_NAME", "An item with this name already exists in the category")
		return
	}
	if err != nil {
		h.Logger.Error("menu item update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update menu item")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Menu item not found")
		return
	}

	h.invalidatePublicMenu(r, *authCtx.RestaurantID)
	response.Success(w, map[string]any{"updated": true})
}

func (h *Handler) MenuItemsToggleAvailable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	itemID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Item ID is required")
		return
	}

	var available bool
	err = h.DB.QueryRow(ctx, `
		update menu_items
		set is_available = not is_available, updated_at = now()
		where id = $1 and restaurant_id = $2 and deleted_at is null
		returning is_available
	`, itemID, *authCtx.RestaurantID).Scan(&available)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Menu item not found")
		return
	}
	if err != nil {
		h.Logger.Error("menu item toggle failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to toggle availability")
		return
	}

	h.invalidatePublicMenu(r, *authCtx.RestaurantID)
	response.Success(w, map[string]any{"isAvailable": available})
}

// MenuItemsDelete is a soft delete; order history keeps its item references.
func (h *Handler) MenuItemsDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	itemID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Item ID is required")
		return
	}

	tag, err := h.DB.Exec(ctx, `
		update menu_items
		set deleted_at = now(), updated_at = now()
		where id = $1 and restaurant_id = $2 and deleted_at is null
	`, itemID, *authCtx.RestaurantID)
	if err != nil {
		h.Logger.Error("menu item delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete menu item")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Menu item not found")
		return
	}

	h.invalidatePublicMenu(r, *authCtx.RestaurantID)
	response.Success(w, map[string]any{"deleted": true})
}
