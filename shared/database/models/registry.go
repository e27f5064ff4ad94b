package models

// All returns every entity migrated by AutoMigrate.
func All() []any {
	return []any{
		&Category{},
		&Organization{},
		&Region{},
		&Dict{},
		&DictItem{},
		&Role{},
		&Menu{},
		&AuthGroup{},
		&SystemUser{},
		&CustomUser{},
	}
}

// LogTables lists the tables sharing the AccountLog shape.
func LogTables() []string {
	return []string{SystemUserLogTable, CustomUserLogTable}
}
