package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrDuplicateGitHubID はgithub_idの一意制約違反を表す。
	ErrDuplicateGitHubID = errors.New("github id already linked")
	// ErrDuplicateEmail はemail_addressの一意制約違反を表す。
	ErrDuplicateEmail = errors.New("email address already taken")
)

// pqUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const pqUniqueViolation = "23505"

// uniqueViolation はerrが一意制約違反であれば制約名を返す。
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}
