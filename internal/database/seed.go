package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ZanzyTHEbar/scriptmatch/internal/auth"
)

// Catalog is the fixed font catalog in canonical order
var Catalog = []NewFont{
	{
		Name:        "Dancing Script",
		ClassName:   "dancing",
		SampleTitle: "Güzel Yazı",
		SampleText:  "Merhaba! Bu el yazısı fontunu taklit etmeye çalışın. Yumuşak kıvrımları ve akıcı çizgileri yakalamaya özen gösterin.",
		ImagePath:   "/assets/dancing-script-example.svg",
	},
	{
		Name:        "Pacifico",
		ClassName:   "pacifico",
		SampleTitle: "Yuvarlak Hatlar",
		SampleText:  "Bu yazı stili daha yuvarlak ve bağlantılı. Harflerin birbirine geçişlerine dikkat edin.",
		ImagePath:   "/assets/pacifico-example.svg",
	},
	{
		Name:        "Caveat",
		ClassName:   "caveat",
		SampleTitle: "Hızlı El Yazısı",
		SampleText:  "Hızlı bir şekilde yazılmış gibi görünen bu yazı stili daha dinamik çizgiler içerir.",
		ImagePath:   "/assets/caveat-example.svg",
	},
	{
		Name:        "Indie Flower",
		ClassName:   "indie",
		SampleTitle: "Eğlenceli Stil",
		SampleText:  "Daha oyunbaz ve serbest bir el yazısı. Düzensiz hiza ve karakteristik harflere dikkat edin.",
		ImagePath:   "/assets/indie-flower-example.svg",
	},
	{
		Name:        "Shadows Into Light",
		ClassName:   "shadows",
		SampleTitle: "İnce Hatlar",
		SampleText:  "İnce hatları olan bu yazı stilinde boşluklar ve oranlar oldukça önemli. Temiz çizgiler kullanın.",
		ImagePath:   "/assets/shadows-into-light-example.svg",
	},
}

// DefaultUser describes the fallback identity used when a request names no user
type DefaultUser struct {
	ID       int64
	Username string
	Password string
}

// Seed creates the default user and the font catalog. Existing rows are
// left alone, so calling it on every start is safe.
func Seed(ctx context.Context, repo Repository, def DefaultUser) error {
	if err := seedDefaultUser(ctx, repo, def); err != nil {
		return err
	}

	created := 0
	for _, nf := range Catalog {
		_, err := repo.GetFontByName(ctx, nf.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("seed font %q: %w", nf.Name, err)
		}

		if _, err := repo.CreateFont(ctx, nf); err != nil && !errors.Is(err, ErrConflict) {
			return fmt.Errorf("seed font %q: %w", nf.Name, err)
		}
		created++
	}

	slog.Info("Seed complete", "backend", repo.Backend(), "fonts_created", created, "default_user_id", def.ID)
	return nil
}

// seedDefaultUser makes sure user def.ID exists. Ids are assigned by the
// store from 1, so a missing default user can only be created as id 1; any
// other id must name a user that already exists.
func seedDefaultUser(ctx context.Context, repo Repository, def DefaultUser) error {
	if _, err := repo.GetUser(ctx, def.ID); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("seed default user: %w", err)
	}

	if def.ID != 1 {
		return fmt.Errorf("seed default user: user %d does not exist and only id 1 can be created; register it first or set DEFAULT_USER_ID=1", def.ID)
	}

	if existing, err := repo.GetUserByUsername(ctx, def.Username); err == nil {
		return fmt.Errorf("seed default user: username %q already owned by user %d", def.Username, existing.ID)
	}

	hash, err := auth.HashPassword(def.Password, auth.DefaultParams)
	if err != nil {
		return fmt.Errorf("seed default user: %w", err)
	}

	user, err := repo.CreateUser(ctx, NewUser{Username: def.Username, PasswordHash: hash})
	if err != nil {
		return fmt.Errorf("seed default user: %w", err)
	}

	if user.ID != def.ID {
		return fmt.Errorf("seed default user: created id %d, configured id %d", user.ID, def.ID)
	}

	return nil
}
