package config

import "time"

type Directory struct{}

var _ DirectoryConfig = Directory{}

func (Directory) GetDirectoryDriver() string {
	return GetEnv("DIRECTORY_DRIVER", DriverMemory)
}

// GetDirectoryUsersFile seeds the memory directory.
func (Directory) GetDirectoryUsersFile() string {
	return GetEnv("DIRECTORY_USERS_FILE", "")
}

func (Directory) GetDirectoryTimeout() time.Duration {
	return GetEnvDuration("DIRECTORY_TIMEOUT", 5*time.Second)
}

func (Directory) GetLDAPURL() string {
	return GetEnv("LDAP_URL", "")
}

func (Directory) GetLDAPBindDN() string {
	return GetEnv("LDAP_BIND_DN", "")
}

func (Directory) GetLDAPBindPassword() string {
	return GetEnv("LDAP_BIND_PASSWORD", "")
}

// GetLDAPUserBaseDN must contain {tenant}.
func (Directory) GetLDAPUserBaseDN() string {
	return GetEnv("LDAP_USER_BASE_DN", "ou=tenants.{tenant},dc=example,dc=org")
}
