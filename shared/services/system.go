package services

import (
	"strings"

	"backoffice-backend/shared/apperr"
	"backoffice-backend/shared/config"
	utils "backoffice-backend/shared/utils/auth"
	"backoffice-backend/shared/utils/idgen"
)

// SystemService exposes the security options every account operation
// depends on.
type SystemService struct {
	opts config.SecurityOptions
}

func NewSystemService(opts config.SecurityOptions) *SystemService {
	return &SystemService{opts: opts}
}

func (s *SystemService) EncryptRounds() int {
	return utils.NormalizeRounds(s.opts.EncryptRounds)
}

func (s *SystemService) PasswordLevel() utils.PasswordLevel {
	return utils.PasswordLevel(strings.ToLower(strings.TrimSpace(s.opts.PasswordLevel)))
}

func (s *SystemService) CheckPassword(password string) error {
	if !utils.PasswordStrongEnough(password, s.PasswordLevel()) {
		return apperr.BadRequest("Password is too simple.")
	}
	return nil
}

func (s *SystemService) HashPassword(password string) (string, error) {
	return utils.HashPassword(password, s.EncryptRounds())
}

func (s *SystemService) ComparePassword(hashed, password string) bool {
	return utils.ComparePassword(hashed, password)
}

func (s *SystemService) UnoSeeds() []string {
	return idgen.NormalizeUnoSeeds(s.opts.UnoSeeds)
}

// PickUnoSeed returns the seed new usernos are issued under.
func (s *SystemService) PickUnoSeed() string {
	return s.UnoSeeds()[0]
}

func (s *SystemService) DefaultPassword() string {
	return s.opts.DefaultPassword
}
