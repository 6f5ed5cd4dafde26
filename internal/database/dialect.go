package database

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iliyamo/tenant-session-gateway/internal/model"
)

// Dialect selects the SQL driver used for the master store and every tenant store.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "pgx"
)

// ParseDialect maps a DB_DRIVER value to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mysql", "mariadb":
		return MySQL, nil
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported db driver %q", s)
}

// DriverName is the name registered with database/sql.
func (d Dialect) DriverName() string { return string(d) }

// DefaultPort is used when a tenant row carries no port.
func (d Dialect) DefaultPort() int {
	if d == Postgres {
		return 5432
	}
	return 3306
}

// DSN renders connection parameters for the dialect's driver.
func (d Dialect) DSN(p model.ConnParams, pc PoolConfig) string {
	port := p.Port
	if port == 0 {
		port = d.DefaultPort()
	}
	addr := net.JoinHostPort(p.Host, strconv.Itoa(port))

	if d == Postgres {
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(p.User, p.Secret),
			Host:   addr,
			Path:   "/" + p.Database,
		}
		q := url.Values{}
		sslmode := pc.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		q.Set("sslmode", sslmode)
		if p.Schema != "" {
			q.Set("search_path", p.Schema)
		}
		if pc.ConnectTimeout > 0 {
			q.Set("connect_timeout", strconv.Itoa(int(pc.ConnectTimeout/time.Second)))
		}
		u.RawQuery = q.Encode()
		return u.String()
	}

	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Secret
	cfg.Net = "tcp"
	cfg.Addr = addr
	cfg.DBName = p.Database
	cfg.ParseTime = true
	cfg.ClientFoundRows = true // RowsAffected counts matched rows
	cfg.Loc = time.UTC
	cfg.Timeout = pc.ConnectTimeout
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Rebind rewrites `?` placeholders to `$n` for postgres. Placeholders inside
// string literals, quoted identifiers and comments are left alone.
func (d Dialect) Rebind(query string) string {
	if d != Postgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'' || c == '"':
			// '' and "" escapes fall out of closing and reopening
			end := strings.IndexByte(query[i+1:], c)
			if end < 0 {
				b.WriteString(query[i:])
				return b.String()
			}
			b.WriteString(query[i : i+end+2])
			i += end + 1
		case c == '-' && strings.HasPrefix(query[i:], "--"):
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				b.WriteString(query[i:])
				return b.String()
			}
			b.WriteString(query[i : i+end+1])
			i += end
		case c == '/' && strings.HasPrefix(query[i:], "/*"):
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				b.WriteString(query[i:])
				return b.String()
			}
			b.WriteString(query[i : i+end+4])
			i += end + 3
		case c == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
