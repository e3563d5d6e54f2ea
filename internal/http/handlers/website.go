package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"tablefront-pos-service/internal/middleware"
	"tablefront-pos-service/pkg/response"
)

type WebsiteSettings struct {
	ThemeColor   string  `json:"themeColor"`
	HeroTitle    *string `json:"heroTitle"`
	HeroSubtitle *string `json:"heroSubtitle"`
	AboutText    *string `json:"aboutText"`
	ContactEmail *string `json:"contactEmail"`
	ContactPhone *string `json:"contactPhone"`
	OpeningHours *string `json:"openingHours"`
	IsPublished  bool    `json:"isPublished"`
}

type WebsiteBanner struct {
	ID        int64   `json:"id"`
	ImageURL  string  `json:"imageUrl"`
	Caption   *string `json:"caption"`
	SortOrder int     `json:"sortOrder"`
	IsActive  bool    `json:"isActive"`
}

func (h *Handler) WebsiteSettingsGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	var settings WebsiteSettings
	err := h.DB.QueryRow(ctx, `
		select theme_color, hero_title, hero_subtitle, about_text,
			contact_email, contact_phone, opening_hours, is_published
		from website_settings
		where restaurant_id = $1
	`, *authCtx.RestaurantID).Scan(
		&settings.ThemeColor, &settings.HeroTitle, &settings.HeroSubtitle, &settings.AboutText,
		&settings.ContactEmail, &settings.ContactPhone, &settings.OpeningHours, &settings.IsPublished,
	)
	if err != nil {
		// No row yet: answer defaults so the dashboard can render a form.
		settings = WebsiteSettings{ThemeColor: "#b91c1c"}
	}
	response.Success(w, map[string]any{"settings": settings})
}

func (h *Handler) WebsiteSettingsPut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	var payload WebsiteSettings
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if strings.TrimSpace(payload.ThemeColor) == "" {
		payload.ThemeColor = "#b91c1c"
	}

	_, err := h.DB.Exec(ctx, `
		insert into website_settings
			(restaurant_id, theme_color, hero_title, hero_subtitle, about_text,
			 contact_email, contact_phone, opening_hours, is_published, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		on conflict (restaurant_id) do update set
			theme_color = excluded.theme_color,
			hero_title = excluded.hero_title,
			hero_subtitle = excluded.hero_subtitle,
			about_text = excluded.about_text,
			contact_email = excluded.contact_email,
			contact_phone = excluded.contact_phone,
			opening_hours = excluded.opening_hours,
			is_published = excluded.is_published,
			updated_at = now()
	`, *authCtx.RestaurantID, payload.ThemeColor, payload.HeroTitle, payload.HeroSubtitle,
		payload.AboutText, payload.ContactEmail, payload.ContactPhone, payload.OpeningHours, payload.IsPublished)
	if err != nil {
		h.Logger.Error("website settings upsert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save website settings")
		return
	}

	h.invalidatePublicMenu(r, *authCtx.RestaurantID)
	response.Success(w, map[string]any{"saved": true})
}

func (h *Handler) WebsiteBannersList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	rows, err := h.DB.Query(ctx, `
		select id, image_url, caption, sort_order, is_active
		from website_banners
		where restaurant_id = $1
		order by sort_order, id
	`, *authCtx.RestaurantID)
	if err != nil {
		h.Logger.Error("banner list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch banners")
		return
	}
	defer rows.Close()

	banners := make([]WebsiteBanner, 0)
	for rows.Next() {
		var b WebsiteBanner
		if err := rows.Scan(&b.ID, &b.ImageURL, &b.Caption, &b.SortOrder, &b.IsActive); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch banners")
			return
		}
		banners = append(banners, b)
	}
	response.Success(w, map[string]any{"banners": banners})
}

func (h *Handler) WebsiteBannersCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	var payload struct {
		ImageURL  string  `json:"imageUrl"`
		Caption   *string `json:"caption"`
		SortOrder int     `json:"sortOrder"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if strings.TrimSpace(payload.ImageURL) == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Image URL is required")
		return
	}

	var id int64
	err := h.DB.QueryRow(ctx,
		`insert into website_banners (restaurant_id, image_url, caption, sort_order) values ($1, $2, $3, $4) returning id`,
		*authCtx.RestaurantID, strings.TrimSpace(payload.ImageURL), payload.Caption, payload.SortOrder,
	).Scan(&id)
	if err != nil {
		h.Logger.Error("banner insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create banner")
		return
	}

	h.invalidatePublicMenu(r, *authCtx.RestaurantID)
	response.Created(w, map[string]any{"id": id})
}

func (h *Handler) WebsiteBannersUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	bannerID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Banner ID is required")
		return
	}

	var payload struct {
		Caption   *string `json:"caption"`
		SortOrder *int    `json:"sortOrder"`
		IsActive  *bool   `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	tag, err := h.DB.Exec(ctx, `
		update website_banners
		set caption = coalesce($1, caption),
			sort_order = coalesce($2, sort_order),
			is_active = coalesce($3, is_active)
		where id = $4 and restaurant_id = $5
	`, payload.Caption, payload.SortOrder, payload.IsActive, bannerID, *authCtx.RestaurantID)
	if err != nil {
		h.Logger.Error("banner update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update banner")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Banner not found")
		return
	}

	h.invalidatePublicMenu(r, *authCtx.RestaurantID)
	response.Success(w, map[string]any{"updated": true})
}

func (h *Handler) WebsiteBannersDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	bannerID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Banner ID is required")
		return
	}

	tag, err := h.DB.Exec(ctx,
		`delete from website_banners where id = $1 and restaurant_id = $2`,
		bannerID, *authCtx.RestaurantID,
	)
	if err != nil {
		h.Logger.Error("banner delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete banner")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Banner not found")
		return
	}

	h.invalidatePublicMenu(r, *authCtx.RestaurantID)
	response.Success(w, map[string]any{"deleted": true})
}
