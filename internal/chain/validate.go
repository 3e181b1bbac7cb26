package chain

// ValidateSequence выполняет полную валидацию последовательности задач.
//
// Проверяет:
//   - Наличие задач
//   - Уникальность и непустоту имён
//   - Наличие work и корректность потолка попыток
//   - Положительный интервал между попытками (когда попыток больше одной)
//   - Ссылки required inputs: только на строго более ранние задачи;
//     имя, не совпадающее ни с одной задачей, считается ключом initial
//     context и проверяется на рантайме
func ValidateSequence(specs []TaskSpec) error {
	if len(specs) == 0 {
		return ErrNoTasks
	}

	// Первый проход: индекс имя → позиция, проверка уникальности
	index := make(map[string]int, len(specs))
	for i := range specs {
		name := specs[i].Name
		if name == "" {
			return newValidationError("", "name", "task has empty name", ErrEmptyTaskName)
		}
		if _, ok := index[name]; ok {
			return newValidationError(name, "name", "duplicate task name", ErrDuplicateTaskName)
		}
		index[name] = i
	}

	// Второй проход: свойства задач и ссылки inputs
	for i := range specs {
		spec := &specs[i]

		if spec.Work == nil {
			return newValidationError(spec.Name, "work", "task has no work", ErrNoWork)
		}
		if spec.MaxAttempts < 1 {
			return newValidationError(spec.Name, "max_attempts", "max attempts must be at least 1", ErrBadAttempts)
		}
		if spec.MaxAttempts > 1 && spec.RetryInterval <= 0 {
			return newValidationError(spec.Name, "retry_interval", "retry interval must be positive", ErrBadInterval)
		}

		for _, input := range spec.RequiresInputs {
			pos, ok := index[input]
			if !ok {
				continue
			}
			if pos == i {
				return newValidationError(spec.Name, "requires_inputs", "task requires its own output", ErrSelfInput)
			}
			if pos > i {
				return newValidationError(spec.Name, "requires_inputs", "required input "+input+" references a later task", ErrForwardInput)
			}
		}
	}

	return nil
}
