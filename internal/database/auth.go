package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"media-shelf/internal/logging"
	"media-shelf/internal/validate"
)

// tokenBytes is the amount of randomness in a session token.
const tokenBytes = 32

// bootstrapAdmin creates the administrator account if there are no users.
// The generated password is printed once and never stored in plaintext.
func (d *Database) bootstrapAdmin(ctx context.Context, conn *sql.DB) error {
	var count int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	password := rand.Text()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.opts.PasswordCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	username := d.opts.AdminUsername
	_, err = conn.ExecContext(ctx,
		"INSERT INTO users (username, password, token, admin) VALUES (?, ?, NULL, 1)",
		username, string(hash),
	)
	if err != nil {
		return fmt.Errorf("failed to create administrator: %w", classifyWriteError("bootstrap_admin", err))
	}

	// Printf rather than Info: this must show up whatever LOG_LEVEL is.
	logging.Printf("------------------------------------------------------------")
	logging.Printf("ADMINISTRATOR ACCOUNT CREATED")
	logging.Printf("  Username: %s", username)
	logging.Printf("  Password: %s", password)
	logging.Printf("  This password is shown only once. Change it with 'shelfctl passwd'.")
	logging.Printf("------------------------------------------------------------")

	return nil
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (d *Database) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.opts.PasswordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify checks a username and password. On success it returns the user's
// session token, issuing one if the user has none; an existing token is
// returned unchanged. The token is empty unless result is VerifyOK.
func (d *Database) Verify(ctx context.Context, username, password string) (token string, result VerifyResult, err error) {
	err = d.withConn(ctx, "verify", func(ctx context.Context, conn *sql.DB) error {
		var hash string
		var current sql.NullString

		err := conn.QueryRowContext(ctx,
			"SELECT password, token FROM users WHERE username = ?",
			username,
		).Scan(&hash, &current)
		if errors.Is(err, sql.ErrNoRows) {
			// Spend the same bcrypt work as a real check.
			_ = bcrypt.CompareHashAndPassword(d.dummyHash(), []byte(password))
			result = VerifyUnknownUser
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up user: %w", err)
		}

		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				result = VerifyMismatch
				return nil
			}
			return fmt.Errorf("failed to check password: %w", err)
		}

		if current.Valid && current.String != "" {
			token = current.String
			result = VerifyOK
			return nil
		}

		fresh, err := generateToken()
		if err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx,
			"UPDATE users SET token = ? WHERE username = ?",
			fresh, username,
		); err != nil {
			return fmt.Errorf("failed to store token: %w", classifyWriteError("verify", err))
		}

		token = fresh
		result = VerifyOK
		return nil
	})
	if err != nil {
		return "", VerifyUnknownUser, err
	}
	return token, result, nil
}

// VerifyToken returns the username owning token.
func (d *Database) VerifyToken(ctx context.Context, token string) (username string, ok bool, err error) {
	err = d.withConn(ctx, "verify_token", func(ctx context.Context, conn *sql.DB) error {
		err := conn.QueryRowContext(ctx, "SELECT username FROM users WHERE token = ?", token).Scan(&username)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up token: %w", err)
		}
		ok = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return username, ok, nil
}

// VerifyAdmin reports whether token belongs to an administrator. Unknown
// tokens are not administrators.
func (d *Database) VerifyAdmin(ctx context.Context, token string) (bool, error) {
	var admin bool
	err := d.withConn(ctx, "verify_admin", func(ctx context.Context, conn *sql.DB) error {
		err := conn.QueryRowContext(ctx, "SELECT admin FROM users WHERE token = ?", token).Scan(&admin)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up token: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return admin, nil
}

// ListUsers returns every account in storage order.
func (d *Database) ListUsers(ctx context.Context) ([]UserSummary, error) {
	users := []UserSummary{}
	err := d.withConn(ctx, "list_users", func(ctx context.Context, conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, "SELECT username, admin FROM users ORDER BY rowid")
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var u UserSummary
			if err := rows.Scan(&u.Username, &u.IsAdmin); err != nil {
				return fmt.Errorf("failed to scan user: %w", err)
			}
			users = append(users, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// HasUsers reports whether any account exists.
func (d *Database) HasUsers(ctx context.Context) (bool, error) {
	var count int
	err := d.withConn(ctx, "has_users", func(ctx context.Context, conn *sql.DB) error {
		return conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	})
	return count > 0, err
}

// CreateUser validates and stores a new account. A taken username yields
// an error matching ErrUniqueViolation.
func (d *Database) CreateUser(ctx context.Context, username, password string, isAdmin bool) error {
	if err := validate.Username(username); err != nil {
		return err
	}
	if err := validate.Password(password); err != nil {
		return err
	}

	hash, err := d.hashPassword(password)
	if err != nil {
		return err
	}

	return d.withConn(ctx, "create_user", func(ctx context.Context, conn *sql.DB) error {
		_, err := conn.ExecContext(ctx,
			"INSERT INTO users (username, password, token, admin) VALUES (?, ?, NULL, ?)",
			username, hash, isAdmin,
		)
		if err != nil {
			return fmt.Errorf("failed to create user %q: %w", username, classifyWriteError("create_user", err))
		}
		return nil
	})
}

// UpdateUser renames the account original to username and sets its admin
// flag. The password is replaced only when password is non-empty, and
// replacing it also revokes the session token.
func (d *Database) UpdateUser(ctx context.Context, original, username, password string, isAdmin bool) error {
	if err := validate.Username(username); err != nil {
		return err
	}

	var hash string
	if password != "" {
		if err := validate.Password(password); err != nil {
			return err
		}
		var err error
		if hash, err = d.hashPassword(password); err != nil {
			return err
		}
	}

	return d.withConn(ctx, "update_user", func(ctx context.Context, conn *sql.DB) error {
		var (
			result sql.Result
			err    error
		)
		if hash == "" {
			result, err = conn.ExecContext(ctx,
				"UPDATE users SET username = ?, admin = ? WHERE username = ?",
				username, isAdmin, original,
			)
		} else {
			result, err = conn.ExecContext(ctx,
				"UPDATE users SET username = ?, password = ?, admin = ?, token = NULL WHERE username = ?",
				username, hash, isAdmin, original,
			)
		}
		if err != nil {
			return fmt.Errorf("failed to update user %q: %w", original, classifyWriteError("update_user", err))
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to update user %q: %w", original, err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: %q", ErrUserNotFound, original)
		}
		return nil
	})
}

// DeleteUser removes an account. Deleting a missing account is not an error.
func (d *Database) DeleteUser(ctx context.Context, username string) error {
	return d.withConn(ctx, "delete_user", func(ctx context.Context, conn *sql.DB) error {
		if _, err := conn.ExecContext(ctx, "DELETE FROM users WHERE username = ?", username); err != nil {
			return fmt.Errorf("failed to delete user %q: %w", username, err)
		}
		return nil
	})
}

// Logout revokes token. Unknown tokens are ignored.
func (d *Database) Logout(ctx context.Context, token string) error {
	return d.withConn(ctx, "logout", func(ctx context.Context, conn *sql.DB) error {
		if _, err := conn.ExecContext(ctx, "UPDATE users SET token = NULL WHERE token = ?", token); err != nil {
			return fmt.Errorf("failed to clear token: %w", err)
		}
		return nil
	})
}
