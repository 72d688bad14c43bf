package db

import (
	"net/url"
	"strconv"
)

type connParts struct {
	host     string
	port     int
	user     string
	password string
	database string
}

func parseTestConnString(connStr string) (connParts, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return connParts{}, err
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return connParts{}, err
	}
	password, _ := u.User.Password()
	return connParts{
		host:     u.Hostname(),
		port:     port,
		user:     u.User.Username(),
		password: password,
		database: u.Path[1:],
	}, nil
}
